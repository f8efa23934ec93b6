package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjectionFingerprint(t *testing.T) {
	if hit := CheckParameterForInjection("$1", "alice"); hit != nil {
		t.Errorf("clean value flagged: %+v", hit)
	}
	if hit := CheckParameterForInjection("$1", 42); hit != nil {
		t.Errorf("non-string value flagged: %+v", hit)
	}

	hit := CheckParameterForInjection("$1", "' OR '1'='1")
	require.NotNil(t, hit)
	assert.True(t, hit.IsSQLi)
	assert.Equal(t, "$1", hit.ParamName)
	assert.NotEmpty(t, hit.Fingerprint)
}

func TestCheckAllParameters(t *testing.T) {
	hits := CheckAllParameters(map[string]any{
		"$1": "alice",
		"$2": "' OR '1'='1",
		"$3": 42,
	})

	require.Len(t, hits, 1)
	assert.Equal(t, "$2", hits[0].ParamName)
	assert.True(t, hits[0].IsSQLi)

	assert.Empty(t, CheckAllParameters(map[string]any{"$1": "bob", "$2": 7}))
}
