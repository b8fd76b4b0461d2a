package vector

import (
	"context"
	"fmt"
	"time"

	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Bootstrap ensures the Activity class exists with the expected properties.
// Vectors are supplied at upsert time, so the class carries no vectorizer.
func Bootstrap(ctx context.Context, baseURL string) error {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cls := &models.Class{
		Class:      activityClass,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "activityId", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "description", DataType: []string{"text"}},
			{Name: "type", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "timeSlot", DataType: []string{"text"}},
			{Name: "lastUpdated", DataType: []string{"date"}},
		},
	}

	ex, err := cl.Schema().ClassGetter().WithClassName(cls.Class).Do(cctx)
	if err == nil && ex != nil {
		return nil
	}
	if err := cl.Schema().ClassCreator().WithClass(cls).Do(cctx); err != nil {
		return fmt.Errorf("create class %s: %w", cls.Class, err)
	}
	return nil
}
