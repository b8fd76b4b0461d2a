// Package catalog loads the static activity reference data the search index
// is built from. Activities are immutable once loaded.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

//go:embed seed.json
var seedData []byte

// Load reads activities from path, or falls back to the embedded seed when
// path is empty.
func Load(path string) ([]model.Activity, error) {
	data := seedData
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}

	var acts []model.Activity
	if err := json.Unmarshal(data, &acts); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range acts {
		if err := validate(&acts[i]); err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
	}
	return acts, nil
}

func validate(a *model.Activity) error {
	if strings.TrimSpace(a.ActivityID) == "" {
		return fmt.Errorf("%w: missing activityId", model.ErrValidation)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: missing title", model.ErrValidation)
	}
	if a.Latitude < -90 || a.Latitude > 90 || a.Longitude < -180 || a.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range for %s", model.ErrValidation, a.ActivityID)
	}
	if a.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration for %s", model.ErrValidation, a.ActivityID)
	}
	if a.Type == "" {
		a.Type = "Attraction"
	}
	return nil
}
