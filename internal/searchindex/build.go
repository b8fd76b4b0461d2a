package searchindex

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// categoryKeywords maps the fixed scoring categories to their keyword lists.
var categoryKeywords = map[string][]string{
	"nature":     {"park", "garden", "trail", "nature", "outdoor", "lake", "mountain", "beach", "coast", "green", "botanical"},
	"culture":    {"museum", "history", "cathedral", "culture", "heritage", "gallery", "historic", "church", "temple", "observatory"},
	"food":       {"food", "cuisine", "dining", "restaurant", "eat", "meal", "cafe", "tastings", "breakfast", "lunch", "dinner"},
	"shopping":   {"shopping", "market", "shop", "boutique", "mall", "arcade"},
	"adventure":  {"adventure", "hike", "kayak", "climb", "thrilling", "whitewater", "trek", "strenuous"},
	"relaxation": {"relaxing", "relaxation", "spa", "wellness", "quiet", "peaceful", "baths", "retreat"},
}

var clockRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

// Build constructs a complete Index over the catalog. Embedding failures are
// logged and skipped; the affected activity stays reachable through the
// token, category and tag maps.
func Build(ctx context.Context, activities []model.Activity, emb Embedder, schemaVersion int, log zerolog.Logger) (*Index, error) {
	now := time.Now().UTC()
	ix := &Index{
		tokenIndex:    make(map[string][]string),
		categoryIndex: make(map[string][]string),
		timeSlotIndex: make(map[model.TimeSlot][]string),
		tagIndex:      make(map[string][]string),
		vectors:       make(map[string][]float32),
		activities:    make(map[string]model.IndexedActivity, len(activities)),
		meta:          Metadata{Count: len(activities), BuiltAt: now, SchemaVersion: schemaVersion},
	}

	// First pass: tokenize and count document frequency.
	tokensByID := make(map[string][]string, len(activities))
	df := make(map[string]int)
	for _, a := range activities {
		toks := Tokenize(a.Title + " " + a.Description + " " + strings.Join(a.Tags, " "))
		tokensByID[a.ActivityID] = toks
		for _, t := range dedupe(toks) {
			df[t]++
		}
	}
	n := float64(len(activities))

	for _, a := range activities {
		toks := tokensByID[a.ActivityID]

		// tf-idf weight per token for this activity.
		counts := make(map[string]int, len(toks))
		for _, t := range toks {
			counts[t]++
		}
		weights := make(map[string]float64, len(counts))
		for t, c := range counts {
			tf := float64(c) / float64(len(toks))
			idf := math.Log(1 + n/float64(df[t]))
			weights[t] = tf * idf
		}

		ia := model.IndexedActivity{
			Activity:        a,
			SearchTokens:    toks,
			CategoryScores:  categoryScores(weights),
			TimeSlot:        deriveTimeSlot(a.OpenHours),
			PopularityScore: popularityScore(a),
			LastUpdated:     now,
		}

		if emb != nil {
			vec, err := emb.Embed(ctx, a.Title+". "+a.Description)
			if err != nil {
				log.Warn().Err(err).Str("activity_id", a.ActivityID).Msg("embedding failed; indexing without vector")
			} else if len(vec) > 0 {
				ix.vectors[a.ActivityID] = vec
			}
		}

		ix.activities[a.ActivityID] = ia
		for _, t := range dedupe(toks) {
			ix.tokenIndex[t] = append(ix.tokenIndex[t], a.ActivityID)
		}
		for cat, score := range ia.CategoryScores {
			if score > 0 {
				ix.categoryIndex[cat] = append(ix.categoryIndex[cat], a.ActivityID)
			}
		}
		for _, tag := range a.Tags {
			ix.tagIndex[tag] = append(ix.tagIndex[tag], a.ActivityID)
		}
		ix.timeSlotIndex[ia.TimeSlot] = append(ix.timeSlotIndex[ia.TimeSlot], a.ActivityID)
	}

	// Stable posting order keeps lookups deterministic across builds.
	for _, ids := range ix.tokenIndex {
		sort.Strings(ids)
	}
	for _, ids := range ix.categoryIndex {
		sort.Strings(ids)
	}
	for _, ids := range ix.tagIndex {
		sort.Strings(ids)
	}
	for _, ids := range ix.timeSlotIndex {
		sort.Strings(ids)
	}
	return ix, nil
}

// categoryScores sums token weights per category keyword table and normalizes
// the result into [0,1] against the activity's strongest category.
func categoryScores(weights map[string]float64) map[string]float64 {
	raw := make(map[string]float64)
	var maxScore float64
	for cat, kws := range categoryKeywords {
		var s float64
		for _, kw := range kws {
			s += weights[kw]
		}
		if s > 0 {
			raw[cat] = s
			if s > maxScore {
				maxScore = s
			}
		}
	}
	if maxScore == 0 {
		return raw
	}
	for cat, s := range raw {
		raw[cat] = s / maxScore
	}
	return raw
}

// deriveTimeSlot pattern-matches the declared hours string.
func deriveTimeSlot(hours string) model.TimeSlot {
	h := strings.ToLower(hours)
	switch {
	case h == "":
		return model.SlotAnytime
	case strings.Contains(h, "24 hours") || strings.Contains(h, "24/7"):
		return model.SlotAnytime
	case strings.Contains(h, "morning"):
		return model.SlotMorning
	case strings.Contains(h, "night") || strings.Contains(h, "evening"):
		return model.SlotEvening
	}

	marks := clockRe.FindAllStringSubmatch(h, -1)
	if len(marks) == 0 {
		return model.SlotAnytime
	}
	open := to24h(marks[0])
	close := to24h(marks[len(marks)-1])
	if close <= open {
		// Wraps past midnight.
		close = 24
	}
	switch {
	case close <= 12:
		return model.SlotMorning
	case open >= 17:
		return model.SlotEvening
	default:
		return model.SlotAfternoon
	}
}

func to24h(m []string) int {
	hr, _ := strconv.Atoi(m[1])
	if hr == 12 {
		hr = 0
	}
	if m[3] == "pm" {
		hr += 12
	}
	return hr
}

// popularityScore starts at 0.5 and adds bonuses for free, famous and central
// language, capped at 1.0.
func popularityScore(a model.Activity) float64 {
	text := strings.ToLower(a.Title + " " + a.Description + " " + strings.Join(a.Tags, " "))
	score := 0.5
	if strings.Contains(text, "free") {
		score += 0.2
	}
	if strings.Contains(text, "famous") || strings.Contains(text, "popular") || strings.Contains(text, "iconic") {
		score += 0.2
	}
	if strings.Contains(text, "central") || strings.Contains(text, "center") || strings.Contains(text, "centre") {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
