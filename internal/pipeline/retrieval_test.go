package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/query"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
	"github.com/wayfarerlabs/tripweaver/internal/vector"
)

type fakeSearcher struct {
	hits []vector.Hit
	err  error
}

func (f *fakeSearcher) Query(context.Context, string, []float32, int) ([]vector.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeSearcher) UpsertActivity(context.Context, string, []float32, map[string]interface{}) error {
	return nil
}

func activityPool() []model.Activity {
	var out []model.Activity
	for i := 0; i < 10; i++ {
		out = append(out, model.Activity{
			ActivityID:  fmt.Sprintf("food-%02d", i),
			Title:       fmt.Sprintf("Restaurant %d", i),
			Description: "Local cuisine and dining",
			Type:        "Food",
		})
	}
	out = append(out,
		model.Activity{
			ActivityID:  "nature-01",
			Title:       "Botanical Garden",
			Description: "A quiet garden with nature trails",
			Type:        "Nature",
			Tags:        []string{"Outdoor", "Nature"},
		},
		model.Activity{
			ActivityID:  "nature-02",
			Title:       "Harbor Walk",
			Description: "Scenic outdoor walk along the water",
			Type:        "Nature",
			Tags:        []string{"Outdoor", "Scenic"},
		},
	)
	return out
}

func newTestPipeline(t *testing.T, s vector.Searcher) *Pipeline {
	t.Helper()
	source := searchindex.Source(func(context.Context) ([]model.Activity, error) {
		return activityPool(), nil
	})
	mgr := searchindex.NewManager(source, nil, time.Hour, 1, zerolog.Nop())
	return New(s, nil, mgr, nil, 30, zerolog.Nop())
}

func allHits(sim float64) []vector.Hit {
	var out []vector.Hit
	for _, a := range activityPool() {
		out = append(out, vector.Hit{ActivityID: a.ActivityID, Title: a.Title, Type: a.Type, Similarity: sim})
	}
	return out
}

func TestBuildCandidatesDiversityCap(t *testing.T) {
	p := newTestPipeline(t, &fakeSearcher{hits: allHits(0.9)})

	res, err := p.BuildCandidates(context.Background(), query.Process("things to do"), Context{}, 10)
	require.NoError(t, err)

	perType := make(map[string]int)
	for _, c := range res.Candidates {
		perType[c.Activity.Type]++
	}
	// ceil(0.3 * 10) = 3 per type at most.
	assert.LessOrEqual(t, perType["Food"], 3)
	assert.Equal(t, 2, perType["Nature"])
}

func TestBuildCandidatesDropsWeakScores(t *testing.T) {
	// Similarity 0.3 alone gives a composite of 3, below the minimum of 5.
	p := newTestPipeline(t, &fakeSearcher{hits: allHits(0.3)})

	res, err := p.BuildCandidates(context.Background(), query.Process("things to do"), Context{}, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestBuildCandidatesInterestBoostRescuesWeakSimilarity(t *testing.T) {
	// The same weak similarity passes once the interest term matches, because
	// the interest component adds 5.
	p := newTestPipeline(t, &fakeSearcher{hits: allHits(0.3)})

	res, err := p.BuildCandidates(context.Background(),
		query.Process("things to do"), Context{Interests: []string{"nature"}}, 10)
	require.NoError(t, err)

	require.NotEmpty(t, res.Candidates)
	for _, c := range res.Candidates {
		assert.Equal(t, "Nature", c.Activity.Type)
		assert.Contains(t, c.Reasons, "matches interests")
	}
}

func TestBuildCandidatesFallbackOnSearchFailure(t *testing.T) {
	p := newTestPipeline(t, &fakeSearcher{err: fmt.Errorf("search down")})

	res, err := p.BuildCandidates(context.Background(), query.Process("garden walk"), Context{}, 10)
	require.NoError(t, err)

	assert.Contains(t, res.Reasons, model.ReasonRetrievalUnavailable)
	require.NotEmpty(t, res.Candidates, "degraded retrieval must still produce candidates")
	for _, c := range res.Candidates {
		assert.Equal(t, 0.5, c.Similarity)
	}
}

func TestBuildCandidatesWeatherMatchBoostsScore(t *testing.T) {
	p := newTestPipeline(t, &fakeSearcher{hits: allHits(0.9)})

	res, err := p.BuildCandidates(context.Background(),
		query.Process("outdoor day"), Context{Weather: "clear"}, 10)
	require.NoError(t, err)

	var natureScore, foodScore float64
	for _, c := range res.Candidates {
		switch c.Activity.ActivityID {
		case "nature-01":
			natureScore = c.Score
		case "food-00":
			foodScore = c.Score
		}
	}
	require.NotZero(t, natureScore)
	require.NotZero(t, foodScore)
	assert.Greater(t, natureScore, foodScore, "outdoor tags should outrank untagged venues in clear weather")
}

func TestBuildCandidatesBackfillsDurations(t *testing.T) {
	p := newTestPipeline(t, &fakeSearcher{hits: allHits(0.9)})

	res, err := p.BuildCandidates(context.Background(), query.Process("things to do"), Context{}, 10)
	require.NoError(t, err)
	for _, c := range res.Candidates {
		assert.Greater(t, c.Activity.DurationMinutes, 0)
	}
}
