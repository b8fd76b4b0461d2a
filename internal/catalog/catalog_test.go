package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSeed(t *testing.T) {
	acts, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, acts)
	for _, a := range acts {
		assert.NotEmpty(t, a.ActivityID)
		assert.NotEmpty(t, a.Title)
		assert.NotEmpty(t, a.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	body := `[{"activityId":"x-1","title":"Test Spot","latitude":41.0,"longitude":2.0}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	acts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "x-1", acts[0].ActivityID)
	// Missing type defaults to Attraction.
	assert.Equal(t, "Attraction", acts[0].Type)
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `[{"title":"No ID"}]`},
		{"missing title", `[{"activityId":"x"}]`},
		{"bad latitude", `[{"activityId":"x","title":"T","latitude":123}]`},
		{"negative duration", `[{"activityId":"x","title":"T","durationMinutes":-5}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
