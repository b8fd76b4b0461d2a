package traffic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/cache"
	"github.com/wayfarerlabs/tripweaver/internal/model"
)

const (
	// RecommendationAvoid is the provider verdict that always excludes.
	RecommendationAvoid = "avoid now"

	tagLowTraffic      = "low-traffic"
	tagModerateTraffic = "moderate-traffic"
)

// Filter admits only candidates with acceptably low live congestion.
// Any location whose reading cannot be resolved is treated as SEVERE and
// excluded: an unverifiable location must never be silently recommended.
type Filter struct {
	provider Provider
	cache    *cache.Cache[model.TrafficSample]
	timeout  time.Duration
	log      zerolog.Logger
}

// NewFilter constructs a Filter. cache may be nil to disable reading reuse.
func NewFilter(provider Provider, c *cache.Cache[model.TrafficSample], timeout time.Duration, log zerolog.Logger) *Filter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Filter{provider: provider, cache: c, timeout: timeout, log: log}
}

// Admit runs concurrent lookups for every candidate with resolvable
// coordinates and returns the admitted subset, tagged for display, together
// with the samples taken at admitted locations. Candidate order is preserved.
func (f *Filter) Admit(ctx context.Context, cands []model.RankedCandidate) ([]model.RankedCandidate, []model.TrafficSample) {
	samples := f.lookupAll(ctx, cands)

	admitted := make([]model.RankedCandidate, 0, len(cands))
	kept := make([]model.TrafficSample, 0, len(cands))
	for i, c := range cands {
		s := samples[i]
		if !admissible(s) {
			f.log.Debug().
				Str("activity_id", c.Activity.ActivityID).
				Str("level", s.Level.String()).
				Str("crowd", s.CrowdLevel).
				Msg("candidate excluded by traffic filter")
			continue
		}
		if s.Level <= model.TrafficLow {
			c.TrafficTag = tagLowTraffic
		} else {
			c.TrafficTag = tagModerateTraffic
		}
		admitted = append(admitted, c)
		kept = append(kept, s)
	}
	return admitted, kept
}

// lookupAll resolves one sample per candidate. Individual failures and
// timeouts produce a SEVERE sample; if the whole batch deadline expires the
// remaining lookups are marked SEVERE without retry.
func (f *Filter) lookupAll(ctx context.Context, cands []model.RankedCandidate) []model.TrafficSample {
	out := make([]model.TrafficSample, len(cands))

	batchCtx, cancel := context.WithTimeout(ctx, f.timeout*2)
	defer cancel()

	var wg sync.WaitGroup
	for i, c := range cands {
		lat, lon := c.Activity.Latitude, c.Activity.Longitude
		if lat == 0 && lon == 0 {
			out[i] = unresolvedSample(lat, lon)
			continue
		}

		key := cacheKey(lat, lon)
		if f.cache != nil {
			if s, ok := f.cache.Get(key); ok {
				out[i] = s
				continue
			}
		}

		wg.Add(1)
		go func(i int, lat, lon float64, key string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(batchCtx, f.timeout)
			defer cancel()

			s, err := f.provider.Lookup(callCtx, lat, lon)
			if err != nil {
				f.log.Warn().Err(err).
					Float64("lat", lat).Float64("lon", lon).
					Str("reason", model.ReasonTrafficUnknown).
					Msg("traffic lookup failed; treating as SEVERE")
				out[i] = unresolvedSample(lat, lon)
				return
			}
			out[i] = s
			if f.cache != nil {
				f.cache.Put(key, s)
			}
		}(i, lat, lon, key)
	}
	wg.Wait()
	return out
}

// admissible applies the admission rule: pass only when the level is at most
// MODERATE, the crowd is not HIGH or VERY_HIGH, and the provider does not say
// to avoid the area.
func admissible(s model.TrafficSample) bool {
	if s.Level > model.TrafficModerate {
		return false
	}
	if s.CrowdLevel == "HIGH" || s.CrowdLevel == "VERY_HIGH" {
		return false
	}
	if s.Recommendation == RecommendationAvoid {
		return false
	}
	return true
}

func unresolvedSample(lat, lon float64) model.TrafficSample {
	return model.TrafficSample{
		Latitude:       lat,
		Longitude:      lon,
		Level:          model.TrafficSevere,
		Recommendation: RecommendationAvoid,
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f:%.4f", lat, lon)
}

// BuildSnapshot aggregates samples into a plan-attachable snapshot.
func BuildSnapshot(samples []model.TrafficSample, now time.Time) model.TrafficSnapshot {
	snap := model.TrafficSnapshot{Samples: samples, CapturedAt: now}
	if len(samples) == 0 {
		snap.AvgLevel = model.TrafficModerate
		return snap
	}
	var scoreSum float64
	var levelSum int
	for _, s := range samples {
		scoreSum += s.CongestionScore
		levelSum += int(s.Level)
		snap.IncidentCount += len(s.Incidents)
	}
	snap.AvgCongestion = scoreSum / float64(len(samples))
	avg := float64(levelSum)/float64(len(samples)) + 0.5
	snap.AvgLevel = model.TrafficLevel(int(avg))
	return snap
}
