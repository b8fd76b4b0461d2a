// Package scheduler places admitted, ranked activities into day and period
// slots. It is pure and deterministic: identical inputs and config always
// produce the identical schedule.
package scheduler

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Config bounds a day's schedule.
type Config struct {
	StartDate    time.Time
	DayStartHour int
	DayEndHour   int
	MaxPerDay    int
	TravelBuffer time.Duration
}

// DefaultConfig returns the standard planning window.
func DefaultConfig(startDate time.Time) Config {
	return Config{
		StartDate:    startDate,
		DayStartHour: 8,
		DayEndHour:   21,
		MaxPerDay:    8,
		TravelBuffer: 30 * time.Minute,
	}
}

func (c Config) normalized() Config {
	if c.DayStartHour <= 0 {
		c.DayStartHour = 8
	}
	if c.DayEndHour <= 0 {
		c.DayEndHour = 21
	}
	// An inverted window is a caller mistake; fall back to the full default
	// rather than producing empty days.
	if c.DayEndHour <= c.DayStartHour {
		c.DayStartHour, c.DayEndHour = 8, 21
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = 8
	}
	if c.TravelBuffer <= 0 {
		c.TravelBuffer = 30 * time.Minute
	}
	if c.StartDate.IsZero() {
		c.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return c
}

// Schedule builds an itinerary from per-day candidate lists. For single-day
// trips callers pass one pooled list. An activity is never scheduled twice
// across the whole trip. A day that cannot fit all candidates is returned
// partial rather than failing.
func Schedule(byDay [][]model.RankedCandidate, cfg Config) model.ItineraryDraft {
	cfg = cfg.normalized()
	used := make(map[string]struct{})
	draft := model.ItineraryDraft{Days: make([]model.PlanDay, 0, len(byDay))}

	for dayIdx, cands := range byDay {
		date := cfg.StartDate.AddDate(0, 0, dayIdx)
		day := scheduleDay(cands, cfg, date, dayIdx, used)
		draft.Days = append(draft.Days, day)
	}
	return draft
}

func scheduleDay(cands []model.RankedCandidate, cfg Config, date time.Time, dayIdx int, used map[string]struct{}) model.PlanDay {
	ordered := make([]model.RankedCandidate, len(cands))
	copy(ordered, cands)
	// Rank score first, popularity second, id last to stay deterministic.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if ordered[i].Activity.Popularity != ordered[j].Activity.Popularity {
			return ordered[i].Activity.Popularity > ordered[j].Activity.Popularity
		}
		return ordered[i].Activity.ActivityID < ordered[j].Activity.ActivityID
	})

	dayStart := date.Add(time.Duration(cfg.DayStartHour) * time.Hour)
	dayEnd := date.Add(time.Duration(cfg.DayEndHour) * time.Hour)
	dayBudget := dayEnd.Sub(dayStart)

	day := model.PlanDay{DayIndex: dayIdx}
	cursor := dayStart
	var spent time.Duration

	for _, c := range ordered {
		if len(day.Items) >= cfg.MaxPerDay {
			break
		}
		if !cursor.Before(dayEnd) {
			break
		}
		if _, taken := used[c.Activity.ActivityID]; taken {
			continue
		}

		dur := time.Duration(c.Activity.DurationMinutes) * time.Minute
		if dur <= 0 {
			dur = time.Hour
		}
		if spent+dur > dayBudget {
			continue
		}

		openH, closeH := parseOpenWindow(c.Activity.OpenHours)
		open := date.Add(time.Duration(openH) * time.Hour)
		closeT := date.Add(time.Duration(closeH) * time.Hour)

		start := cursor
		if start.Before(open) {
			start = open
		}
		end := start.Add(dur)
		if end.After(dayEnd) || end.After(closeT) {
			continue
		}

		day.Items = append(day.Items, model.PlanItem{
			Period:   periodOf(start, date),
			Activity: c.Activity,
			Start:    start,
			End:      end,
		})
		used[c.Activity.ActivityID] = struct{}{}
		spent += dur
		cursor = end.Add(cfg.TravelBuffer)
	}
	return day
}

func periodOf(t time.Time, date time.Time) model.TimeSlot {
	h := t.Sub(date).Hours()
	switch {
	case h < 12:
		return model.SlotMorning
	case h < 17:
		return model.SlotAfternoon
	default:
		return model.SlotEvening
	}
}

var clockRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

// parseOpenWindow extracts [open, close) hours from a declared hours string.
// Unparseable or always-open declarations yield the full day.
func parseOpenWindow(hours string) (int, int) {
	h := strings.ToLower(hours)
	if h == "" || strings.Contains(h, "24 hours") || strings.Contains(h, "24/7") {
		return 0, 24
	}
	marks := clockRe.FindAllStringSubmatch(h, -1)
	if len(marks) < 2 {
		return 0, 24
	}
	open := to24h(marks[0])
	closeH := to24h(marks[len(marks)-1])
	if closeH <= open {
		closeH = 24
	}
	return open, closeH
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
