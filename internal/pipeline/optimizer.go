package pipeline

import (
	"sort"
	"strings"

	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/query"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
)

// Optimize re-ranks scored candidates with multiplicative contextual boosts
// and returns them sorted by final score descending. Pure and deterministic.
func Optimize(cands []model.RankedCandidate, proc query.Processed, pctx Context, ix *searchindex.Index) []model.RankedCandidate {
	out := make([]model.RankedCandidate, len(cands))
	copy(out, cands)

	origLower := strings.ToLower(strings.TrimSpace(proc.Original))
	allowTags := weatherTagAllow[strings.ToLower(pctx.Weather)]

	for i := range out {
		c := &out[i]
		text := activityText(c.Activity)
		mult := 1.0

		if origLower != "" && strings.Contains(text, origLower) {
			mult *= 2.0
			c.Reasons = append(c.Reasons, "exact query match")
		}

		if m := capped(1.0+0.2*float64(countMatches(text, proc.Synonyms)), 1.5); m > 1 {
			mult *= m
		}
		if m := capped(1.0+0.1*float64(countMatches(text, proc.RelatedTerms)), 1.2); m > 1 {
			mult *= m
		}
		if neg := countMatches(text, proc.NegativeTerms); neg > 0 {
			m := 1.0 - 0.2*float64(neg)
			if m < 0.5 {
				m = 0.5
			}
			mult *= m
			c.Reasons = append(c.Reasons, "conflicts with intent")
		}

		if countMatches(text, query.IntentKeywords(proc.PrimaryIntent)) > 0 {
			mult *= 1.4
			c.Reasons = append(c.Reasons, "aligns with "+proc.PrimaryIntent)
		}
		secondary := 1.0
		for _, s := range proc.SecondaryIntents {
			if countMatches(text, query.IntentKeywords(s)) > 0 {
				secondary *= 1.1
			}
		}
		mult *= capped(secondary, 1.2)

		// Per-context boosts.
		for _, interest := range pctx.Interests {
			if ia, ok := ix.Get(c.Activity.ActivityID); ok && activityMatchesTerm(ia, interest) {
				mult *= 1.2
				break
			}
		}
		for _, tag := range c.Activity.Tags {
			if containsFold(allowTags, tag) {
				mult *= 1.15
				break
			}
		}
		if pctx.BudgetTier != "" && strings.EqualFold(c.Activity.BudgetTier, pctx.BudgetTier) {
			mult *= 1.1
		}
		if pctx.GroupSize >= 4 && containsFold(c.Activity.Tags, "Family-Friendly") {
			mult *= 1.1
		}

		if pctx.TimeOfDay != "" {
			if ia, ok := ix.Get(c.Activity.ActivityID); ok {
				if ia.TimeSlot == pctx.TimeOfDay || ia.TimeSlot == model.SlotAnytime {
					mult *= 1.2
				}
			}
		}

		c.Score *= mult
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func activityText(a model.Activity) string {
	return strings.ToLower(a.Title + " " + a.Description + " " + strings.Join(a.Tags, " "))
}

func countMatches(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(t)) {
			n++
		}
	}
	return n
}

func capped(m, cap float64) float64 {
	if m > cap {
		return cap
	}
	return m
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
