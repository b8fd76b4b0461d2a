// Package query classifies free-text planning requests into an intent plus
// extracted entities and expands them into retrieval-ready term bundles.
package query

import (
	"sort"
	"strings"
)

// Intent labels for a planning request.
const (
	IntentExploration = "exploration"
	IntentRelaxation  = "relaxation"
	IntentAdventure   = "adventure"
	IntentCultural    = "cultural"
	IntentScenic      = "scenic"
	IntentDining      = "dining"
	IntentShopping    = "shopping"
	IntentPhotography = "photography"
)

// intentPatterns holds the fixed keyword sets scored during classification.
var intentPatterns = map[string][]string{
	IntentExploration: {"explore", "discover", "wander", "hidden", "local", "walk", "tour"},
	IntentRelaxation:  {"relax", "calm", "quiet", "peaceful", "spa", "unwind", "slow", "rest"},
	IntentAdventure:   {"adventure", "thrill", "hike", "climb", "kayak", "extreme", "adrenaline"},
	IntentCultural:    {"museum", "history", "culture", "heritage", "art", "gallery", "historic"},
	IntentScenic:      {"view", "scenic", "panorama", "sunset", "lookout", "landscape"},
	IntentDining:      {"food", "eat", "restaurant", "cuisine", "dinner", "lunch", "taste", "culinary"},
	IntentShopping:    {"shop", "shopping", "market", "boutique", "souvenir", "mall"},
	IntentPhotography: {"photo", "photography", "instagram", "camera", "picture"},
}

// expansionPhrases enrich retrieval per classified intent.
var expansionPhrases = map[string][]string{
	IntentExploration: {"things to do", "local highlights", "walking tour"},
	IntentRelaxation:  {"peaceful places", "quiet spots", "wellness"},
	IntentAdventure:   {"outdoor adventure", "adrenaline activities"},
	IntentCultural:    {"museums and galleries", "historic landmarks"},
	IntentScenic:      {"best views", "scenic lookouts"},
	IntentDining:      {"best restaurants", "local cuisine", "street food"},
	IntentShopping:    {"shopping districts", "local markets"},
	IntentPhotography: {"photo spots", "iconic landmarks"},
}

// negativeTerms down-rank matches that contradict the classified intent.
var negativeTerms = map[string][]string{
	IntentRelaxation: {"crowded", "loud", "busy", "hectic"},
	IntentAdventure:  {"sedentary", "indoor"},
	IntentCultural:   {"nightclub"},
	IntentDining:     {"fast food"},
}

// activityTypeSynonyms groups query words into recognized activity-type entities.
var activityTypeSynonyms = map[string][]string{
	"park":       {"park", "garden", "green space", "playground"},
	"museum":     {"museum", "gallery", "exhibit"},
	"restaurant": {"restaurant", "cafe", "eatery", "bistro", "diner"},
	"shopping":   {"shopping", "market", "mall", "boutique"},
	"trail":      {"trail", "hike", "trek", "path"},
	"church":     {"church", "cathedral", "chapel", "temple", "mosque"},
	"hotel":      {"hotel", "hostel", "resort", "accommodation"},
}

// relatedTerms derived from recognized activity-type entities.
var relatedTerms = map[string][]string{
	"park":       {"outdoor", "nature", "recreation"},
	"museum":     {"culture", "history", "indoor"},
	"restaurant": {"dining", "food", "cuisine"},
	"shopping":   {"retail", "souvenirs", "fashion"},
	"trail":      {"hiking", "nature", "outdoor"},
	"church":     {"architecture", "history", "quiet"},
	"hotel":      {"stay", "comfort"},
}

var preferenceKeywords = map[string][]string{
	"budget":     {"cheap", "budget", "affordable", "free"},
	"luxury":     {"luxury", "upscale", "premium", "exclusive"},
	"family":     {"family", "kids", "children"},
	"romantic":   {"romantic", "couple", "honeymoon", "date"},
	"solo":       {"solo", "alone", "myself"},
	"accessible": {"wheelchair", "accessible", "accessibility"},
}

var timeWords = []string{
	"morning", "afternoon", "evening", "night", "sunrise", "sunset",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"weekend", "today", "tomorrow",
}

// knownPlaces is a small gazetteer of place names recognized in queries.
var knownPlaces = []string{
	"old quarter", "harbour", "waterfront", "downtown", "old town", "city center",
	"riverside", "observatory hill",
}

// IntentKeywords returns the fixed keyword set behind an intent label.
// Used by the ranking optimizer to test intent alignment.
func IntentKeywords(intent string) []string {
	return intentPatterns[intent]
}

// Entities extracted from a request.
type Entities struct {
	ActivityTypes []string `json:"activityTypes,omitempty"`
	Places        []string `json:"places,omitempty"`
	TimeRefs      []string `json:"timeRefs,omitempty"`
	Preferences   []string `json:"preferences,omitempty"`
}

// Processed is the full classification plus expansion bundle for one request.
type Processed struct {
	Original         string   `json:"original"`
	PrimaryIntent    string   `json:"primaryIntent"`
	SecondaryIntents []string `json:"secondaryIntents,omitempty"`
	Confidence       float64  `json:"confidence"`
	Entities         Entities `json:"entities"`
	ExpansionPhrases []string `json:"expansionPhrases,omitempty"`
	Synonyms         []string `json:"synonyms,omitempty"`
	RelatedTerms     []string `json:"relatedTerms,omitempty"`
	NegativeTerms    []string `json:"negativeTerms,omitempty"`
}

// Process classifies and expands a free-text request. It is pure and
// deterministic for identical input text.
func Process(text string) Processed {
	lower := strings.ToLower(text)

	p := Processed{
		Original:      text,
		PrimaryIntent: IntentExploration,
	}

	// Score each intent as matched-keyword-count / pattern-size.
	type scored struct {
		intent string
		score  float64
	}
	var scores []scored
	for intent, kws := range intentPatterns {
		matched := 0
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		if matched > 0 {
			scores = append(scores, scored{intent, float64(matched) / float64(len(kws))})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].intent < scores[j].intent
	})
	if len(scores) > 0 {
		p.PrimaryIntent = scores[0].intent
		p.Confidence = scores[0].score
		for _, s := range scores[1:] {
			if len(p.SecondaryIntents) == 2 {
				break
			}
			p.SecondaryIntents = append(p.SecondaryIntents, s.intent)
		}
	}

	p.Entities = extractEntities(lower)

	p.ExpansionPhrases = append(p.ExpansionPhrases, expansionPhrases[p.PrimaryIntent]...)
	p.NegativeTerms = append(p.NegativeTerms, negativeTerms[p.PrimaryIntent]...)
	for _, at := range p.Entities.ActivityTypes {
		p.Synonyms = appendUnique(p.Synonyms, activityTypeSynonyms[at]...)
		p.RelatedTerms = appendUnique(p.RelatedTerms, relatedTerms[at]...)
	}
	return p
}

func extractEntities(lower string) Entities {
	var e Entities
	for at, syns := range activityTypeSynonyms {
		for _, s := range syns {
			if strings.Contains(lower, s) {
				e.ActivityTypes = appendUnique(e.ActivityTypes, at)
				break
			}
		}
	}
	sort.Strings(e.ActivityTypes)
	for _, place := range knownPlaces {
		if strings.Contains(lower, place) {
			e.Places = append(e.Places, place)
		}
	}
	for _, w := range timeWords {
		if strings.Contains(lower, w) {
			e.TimeRefs = append(e.TimeRefs, w)
		}
	}
	for pref, kws := range preferenceKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				e.Preferences = appendUnique(e.Preferences, pref)
				break
			}
		}
	}
	sort.Strings(e.Preferences)
	return e
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
