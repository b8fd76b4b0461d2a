// Package pipeline implements candidate retrieval and ranking: concurrent
// similarity queries, merge/dedupe, composite scoring, diversity capping and
// a contextual re-ranking pass.
package pipeline

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/cache"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/query"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
	"github.com/wayfarerlabs/tripweaver/internal/vector"
)

const (
	// minCompositeScore drops weak candidates before diversity capping.
	minCompositeScore = 5.0
	// maxTypeShare caps any single activity type's share of the surviving set.
	maxTypeShare = 0.3
)

// weatherTagAllow maps a weather condition to the activity tags it favors.
var weatherTagAllow = map[string][]string{
	"rainy":        {"Indoor-Friendly"},
	"rain":         {"Indoor-Friendly"},
	"drizzle":      {"Indoor-Friendly"},
	"thunderstorm": {"Indoor-Friendly"},
	"snow":         {"Indoor-Friendly", "Wellness"},
	"clear":        {"Outdoor", "Scenic", "Nature"},
	"sunny":        {"Outdoor", "Scenic", "Nature"},
	"clouds":       {"Outdoor"},
}

// defaultDurations backfills estimated minutes per activity type.
var defaultDurations = map[string]int{
	"Food":     90,
	"Museum":   120,
	"Nature":   120,
	"Park":     120,
	"Shopping": 90,
}

const fallbackDuration = 60

// Context carries per-request planning signals into retrieval and ranking.
type Context struct {
	Interests  []string       `json:"interests,omitempty"`
	Weather    string         `json:"weather,omitempty"`
	BudgetTier string         `json:"budgetTier,omitempty"`
	GroupSize  int            `json:"groupSize,omitempty"`
	TimeOfDay  model.TimeSlot `json:"timeOfDay,omitempty"`
}

// Result is the ranked candidate set plus degradation reason codes.
type Result struct {
	Candidates []model.RankedCandidate `json:"candidates"`
	Reasons    []string                `json:"reasons,omitempty"`
}

// Pipeline issues similarity queries and ranks the merged hits. Long-lived;
// construct once and inject.
type Pipeline struct {
	searcher  vector.Searcher
	emb       searchindex.Embedder
	index     *searchindex.Manager
	respCache *cache.Cache[[]vector.Hit]
	topK      int
	log       zerolog.Logger
}

// New constructs a Pipeline. emb may be nil; queries then run keyword-only.
func New(searcher vector.Searcher, emb searchindex.Embedder, index *searchindex.Manager, respCache *cache.Cache[[]vector.Hit], topK int, log zerolog.Logger) *Pipeline {
	if topK <= 0 {
		topK = 30
	}
	return &Pipeline{searcher: searcher, emb: emb, index: index, respCache: respCache, topK: topK, log: log}
}

// BuildCandidates runs the full retrieval and ranking flow for one request.
// limit bounds the surviving set used for the diversity cap; zero means topK.
func (p *Pipeline) BuildCandidates(ctx context.Context, proc query.Processed, pctx Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = p.topK
	}

	ix, err := p.index.Current(ctx)
	if err != nil {
		return Result{}, err
	}

	// One query per interest plus one base query from the enhanced text.
	texts := make([]string, 0, len(pctx.Interests)+1)
	base := proc.Original
	if len(proc.ExpansionPhrases) > 0 {
		base = base + " " + strings.Join(proc.ExpansionPhrases, " ")
	}
	texts = append(texts, base)
	texts = append(texts, pctx.Interests...)

	hitsByQuery, degraded := p.runQueries(ctx, texts)

	var reasons []string
	merged := mergeHits(hitsByQuery)
	if degraded {
		reasons = append(reasons, model.ReasonRetrievalUnavailable)
	}
	if len(merged) == 0 {
		// Degraded path: token/category/tag filtering over the local index.
		merged = p.localFallback(ix, texts)
		if !degraded {
			reasons = append(reasons, model.ReasonRetrievalUnavailable)
		}
	}

	cands := p.score(ix, merged, pctx)
	cands = diversityCap(cands, limit)
	for i := range cands {
		backfillDuration(&cands[i].Activity)
	}

	optimized := Optimize(cands, proc, pctx, ix)
	if len(optimized) > limit {
		optimized = optimized[:limit]
	}
	return Result{Candidates: optimized, Reasons: reasons}, nil
}

// runQueries issues all similarity queries concurrently and joins them.
// Returns per-query hit slices in input order and whether any query failed.
func (p *Pipeline) runQueries(ctx context.Context, texts []string) ([][]vector.Hit, bool) {
	results := make([][]vector.Hit, len(texts))
	var failed bool
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, text := range texts {
		if p.respCache != nil {
			if hits, ok := p.respCache.Get(text); ok {
				results[i] = hits
				continue
			}
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()

			var vec []float32
			if p.emb != nil {
				if v, err := p.emb.Embed(ctx, text); err == nil {
					vec = v
				}
			}
			hits, err := p.searcher.Query(ctx, text, vec, p.topK)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Warn().Err(err).Str("query", text).Msg("similarity query failed")
				failed = true
				return
			}
			results[i] = hits
			if p.respCache != nil {
				p.respCache.Put(text, hits)
			}
		}(i, text)
	}
	wg.Wait()
	return results, failed
}

// mergeHits concatenates per-query hits in query order, deduping by activity
// id with first occurrence winning.
func mergeHits(hitsByQuery [][]vector.Hit) []vector.Hit {
	seen := make(map[string]struct{})
	var out []vector.Hit
	for _, hits := range hitsByQuery {
		for _, h := range hits {
			if _, dup := seen[h.ActivityID]; dup {
				continue
			}
			seen[h.ActivityID] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// localFallback builds neutral-similarity hits from the inverted index when
// the similarity collaborator returned nothing usable.
func (p *Pipeline) localFallback(ix *searchindex.Index, texts []string) []vector.Hit {
	seen := make(map[string]struct{})
	var out []vector.Hit
	for _, text := range texts {
		for _, id := range ix.Lookup(text) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			a, ok := ix.Get(id)
			if !ok {
				continue
			}
			out = append(out, vector.Hit{ActivityID: id, Title: a.Title, Type: a.Type, Similarity: 0.5})
		}
	}
	return out
}

// score computes the composite score and drops candidates below the minimum.
func (p *Pipeline) score(ix *searchindex.Index, hits []vector.Hit, pctx Context) []model.RankedCandidate {
	allowTags := weatherTagAllow[strings.ToLower(pctx.Weather)]
	out := make([]model.RankedCandidate, 0, len(hits))
	for _, h := range hits {
		ia, ok := ix.Get(h.ActivityID)
		if !ok {
			continue
		}

		interestMatches := 0
		for _, interest := range pctx.Interests {
			if activityMatchesTerm(ia, interest) {
				interestMatches++
			}
		}
		weatherMatches := 0
		for _, tag := range ia.Tags {
			for _, allow := range allowTags {
				if strings.EqualFold(tag, allow) {
					weatherMatches++
				}
			}
		}

		denom := len(pctx.Interests)
		if denom < 1 {
			denom = 1
		}
		score := h.Similarity*10 +
			(float64(interestMatches)/float64(denom))*5 +
			float64(weatherMatches)*2
		if score < minCompositeScore {
			continue
		}

		c := model.RankedCandidate{
			Activity:   ia.Activity,
			Similarity: h.Similarity,
			Score:      score,
		}
		if interestMatches > 0 {
			c.Reasons = append(c.Reasons, "matches interests")
		}
		if weatherMatches > 0 {
			c.Reasons = append(c.Reasons, "suits current weather")
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// diversityCap enforces the per-type share limit over a target set size.
func diversityCap(cands []model.RankedCandidate, target int) []model.RankedCandidate {
	if target <= 0 || len(cands) == 0 {
		return cands
	}
	allowed := int(math.Ceil(maxTypeShare * float64(target)))
	if allowed < 1 {
		allowed = 1
	}
	perType := make(map[string]int)
	out := cands[:0:0]
	for _, c := range cands {
		if perType[c.Activity.Type] >= allowed {
			continue
		}
		perType[c.Activity.Type]++
		out = append(out, c)
	}
	return out
}

func backfillDuration(a *model.Activity) {
	if a.DurationMinutes > 0 {
		return
	}
	if d, ok := defaultDurations[a.Type]; ok {
		a.DurationMinutes = d
		return
	}
	a.DurationMinutes = fallbackDuration
}

// activityMatchesTerm reports whether term appears in the activity's type,
// tags or derived category scores.
func activityMatchesTerm(ia model.IndexedActivity, term string) bool {
	t := strings.ToLower(term)
	if strings.Contains(strings.ToLower(ia.Type), t) {
		return true
	}
	for _, tag := range ia.Tags {
		if strings.Contains(strings.ToLower(tag), t) {
			return true
		}
	}
	if score, ok := ia.CategoryScores[t]; ok && score > 0 {
		return true
	}
	return false
}
