package searchindex

import "strings"

// stopWords are dropped during tokenization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {},
	"that": {}, "are": {}, "was": {}, "has": {}, "have": {}, "its": {},
	"you": {}, "your": {}, "our": {}, "their": {}, "near": {}, "over": {},
	"into": {}, "best": {}, "very": {}, "more": {}, "most": {}, "all": {},
}

// synonymTable expands a token into related search tokens.
var synonymTable = map[string][]string{
	"food":       {"cuisine", "dining", "restaurant", "eat", "meal"},
	"restaurant": {"dining", "food", "eatery", "cuisine"},
	"park":       {"garden", "green", "outdoor", "nature"},
	"museum":     {"gallery", "exhibit", "culture", "history"},
	"shopping":   {"market", "shop", "boutique", "mall"},
	"hike":       {"trail", "walk", "trek", "outdoor"},
	"beach":      {"coast", "shore", "seaside"},
	"church":     {"cathedral", "chapel", "temple"},
	"bar":        {"pub", "drinks", "nightlife"},
	"spa":        {"wellness", "relaxation", "baths"},
	"view":       {"scenic", "panorama", "lookout"},
}

// Tokenize lowercases text, strips punctuation, drops stop words and tokens
// shorter than three characters, then appends synonym expansions and
// adjacent-word bigrams.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	base := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		base = append(base, f)
	}

	seen := make(map[string]struct{}, len(base)*2)
	out := make([]string, 0, len(base)*2)
	add := func(tok string) {
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}

	for _, t := range base {
		add(t)
		for _, syn := range synonymTable[t] {
			add(syn)
		}
	}
	// Bigrams over the original token sequence, not the expanded set.
	for i := 0; i+1 < len(base); i++ {
		add(base[i] + " " + base[i+1])
	}
	return out
}
