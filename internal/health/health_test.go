package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckAllHealthy(t *testing.T) {
	agg := NewAggregator(time.Second, zerolog.Nop(),
		CheckerFunc{CheckerName: "a", Fn: func(context.Context) error { return nil }},
		CheckerFunc{CheckerName: "b", Fn: func(context.Context) error { return nil }},
	)
	status := agg.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Components["a"])
	assert.Equal(t, "ok", status.Components["b"])
}

func TestCheckOneFailingMarksUnhealthy(t *testing.T) {
	agg := NewAggregator(time.Second, zerolog.Nop(),
		CheckerFunc{CheckerName: "good", Fn: func(context.Context) error { return nil }},
		CheckerFunc{CheckerName: "bad", Fn: func(context.Context) error { return fmt.Errorf("connection refused") }},
	)
	status := agg.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "ok", status.Components["good"])
	assert.Equal(t, "connection refused", status.Components["bad"])
}

func TestCheckAppliesTimeout(t *testing.T) {
	agg := NewAggregator(50*time.Millisecond, zerolog.Nop(),
		CheckerFunc{CheckerName: "slow", Fn: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		}},
	)
	start := time.Now()
	status := agg.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Less(t, time.Since(start), time.Second)
}
