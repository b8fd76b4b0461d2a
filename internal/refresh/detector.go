// Package refresh decides when a persisted plan's conditions have drifted far
// enough from the snapshots it was built under to warrant a rebuild.
package refresh

import (
	"math"
	"sort"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Severity labels for a refresh decision, ordered weakest to strongest.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Trigger reason labels. These are stable strings persisted in refresh
// metadata and surfaced to clients.
const (
	ReasonExtremeWeather  = "extreme-weather"
	ReasonPrecipChange    = "precipitation-change"
	ReasonTempShift       = "temperature-shift"
	ReasonCriticalDelay   = "critical-incident"
	ReasonCongestionSpike = "congestion-spike"
	ReasonLevelCeiling    = "traffic-above-ceiling"
)

const (
	tempShiftThreshold  = 5.0
	congestionThreshold = 30.0
)

var precipConditions = map[string]struct{}{
	"rain":         {},
	"drizzle":      {},
	"thunderstorm": {},
	"snow":         {},
}

var extremeConditions = map[string]struct{}{
	"thunderstorm": {},
	"tornado":      {},
	"squall":       {},
	"hurricane":    {},
}

// Decision is the outcome of comparing live conditions against a plan's
// stored snapshots.
type Decision struct {
	ShouldRefresh bool         `json:"shouldRefresh"`
	Reasons       []string     `json:"reasons,omitempty"`
	Severity      string       `json:"severity"`
	SeverityScore float64      `json:"severityScore"`
	Traffic       TrafficDrift `json:"traffic"`
	// Confidence is 0-100: 50 base, +25 per signal the comparison could
	// actually observe (weather, traffic), -10 when a trigger barely
	// cleared its threshold.
	Confidence float64 `json:"confidence"`
}

// TrafficDrift summarizes the traffic side of the comparison.
type TrafficDrift struct {
	CongestionDelta float64 `json:"congestionDelta"`
	// LevelChanged reports whether the rounded average ordinal level moved;
	// LevelLabel is the current level mapped back to its label.
	LevelChanged      bool   `json:"levelChanged"`
	LevelLabel        string `json:"levelLabel"`
	NewIncidents      int    `json:"newIncidents"`
	CriticalIncidents int    `json:"criticalIncidents"`
}

// Inputs carries the old and new condition pairs for one evaluation. A nil
// old snapshot means the plan predates snapshot capture; comparison against
// it never triggers, only absolute conditions (extreme weather, traffic
// ceiling) can.
type Inputs struct {
	OldWeather *model.WeatherSnapshot
	NewWeather model.WeatherSnapshot
	// WeatherObserved is false when NewWeather is a fallback value.
	WeatherObserved bool

	OldTraffic *model.TrafficSnapshot
	NewTraffic model.TrafficSnapshot

	// LevelCeiling is the admissible average traffic level; readings above it
	// trigger. Zero means the MODERATE default.
	LevelCeiling model.TrafficLevel
}

// Detector is stateless; the zero value is usable.
type Detector struct{}

// Evaluate compares conditions and scores the drift. Each fired trigger adds
// a weighted contribution; the total is bucketed into a severity label and a
// refresh is recommended whenever at least one trigger fired.
func (Detector) Evaluate(in Inputs) Decision {
	ceiling := in.LevelCeiling
	if ceiling == 0 {
		ceiling = model.TrafficModerate
	}

	var score float64
	var reasons []string
	marginal := false

	if _, extreme := extremeConditions[in.NewWeather.Condition]; extreme {
		score += 40
		reasons = append(reasons, ReasonExtremeWeather)
	}

	if in.OldWeather != nil {
		if precipFlip(in.OldWeather.Condition, in.NewWeather.Condition) {
			score += 20
			reasons = append(reasons, ReasonPrecipChange)
		}
		delta := math.Abs(in.NewWeather.TempC - in.OldWeather.TempC)
		if delta > tempShiftThreshold {
			score += math.Min(20, (delta-tempShiftThreshold)*4)
			reasons = append(reasons, ReasonTempShift)
			if delta <= tempShiftThreshold+1 {
				marginal = true
			}
		}
	}

	crit := criticalIncidents(in.NewTraffic)
	if crit > 0 {
		score += 30
		reasons = append(reasons, ReasonCriticalDelay)
	}

	drift := TrafficDrift{
		LevelLabel:        in.NewTraffic.AvgLevel.String(),
		NewIncidents:      incidentCount(in.NewTraffic),
		CriticalIncidents: crit,
	}
	if in.OldTraffic != nil {
		drift.CongestionDelta = in.NewTraffic.AvgCongestion - in.OldTraffic.AvgCongestion
		drift.LevelChanged = in.NewTraffic.AvgLevel != in.OldTraffic.AvgLevel
		if n := drift.NewIncidents - incidentCount(*in.OldTraffic); n > 0 {
			drift.NewIncidents = n
		} else {
			drift.NewIncidents = 0
		}
		if drift.CongestionDelta > congestionThreshold {
			score += math.Min(20, (drift.CongestionDelta-congestionThreshold)*0.5)
			reasons = append(reasons, ReasonCongestionSpike)
			if drift.CongestionDelta <= congestionThreshold+5 {
				marginal = true
			}
		}
	}

	if in.NewTraffic.AvgLevel > ceiling {
		if in.NewTraffic.AvgLevel-ceiling >= 2 {
			score += 20
		} else {
			score += 10
		}
		reasons = append(reasons, ReasonLevelCeiling)
	}

	sort.Strings(reasons)

	trafficKnown := in.OldTraffic != nil || len(in.NewTraffic.Samples) > 0

	return Decision{
		ShouldRefresh: len(reasons) > 0,
		Reasons:       reasons,
		Severity:      bucket(score),
		SeverityScore: score,
		Traffic:       drift,
		Confidence:    confidence(in.WeatherObserved, trafficKnown, marginal),
	}
}

func precipFlip(oldCond, newCond string) bool {
	_, wasPrecip := precipConditions[oldCond]
	_, isPrecip := precipConditions[newCond]
	return wasPrecip != isPrecip
}

func criticalIncidents(t model.TrafficSnapshot) int {
	n := 0
	for _, s := range t.Samples {
		for _, in := range s.Incidents {
			if in.DelayMagnitude >= 4 {
				n++
			}
		}
	}
	return n
}

// incidentCount prefers the snapshot's stored count and falls back to
// counting the samples directly.
func incidentCount(t model.TrafficSnapshot) int {
	if t.IncidentCount > 0 || len(t.Samples) == 0 {
		return t.IncidentCount
	}
	n := 0
	for _, s := range t.Samples {
		n += len(s.Incidents)
	}
	return n
}

func bucket(score float64) string {
	switch {
	case score >= 60:
		return SeverityCritical
	case score >= 40:
		return SeverityHigh
	case score >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func confidence(weatherKnown, trafficKnown, marginal bool) float64 {
	c := 50.0
	if weatherKnown {
		c += 25
	}
	if trafficKnown {
		c += 25
	}
	if marginal {
		c -= 10
	}
	return math.Max(0, math.Min(100, c))
}
