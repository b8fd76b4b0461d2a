package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

func weatherSnap(cond string, temp float64) *model.WeatherSnapshot {
	return &model.WeatherSnapshot{Condition: cond, TempC: temp, CapturedAt: time.Now().UTC()}
}

func trafficSnap(avgCongestion float64, level model.TrafficLevel) *model.TrafficSnapshot {
	return &model.TrafficSnapshot{AvgCongestion: avgCongestion, AvgLevel: level, CapturedAt: time.Now().UTC()}
}

func baseInputs() Inputs {
	return Inputs{
		OldWeather:      weatherSnap("clear", 20),
		NewWeather:      *weatherSnap("clear", 20),
		WeatherObserved: true,
		OldTraffic:      trafficSnap(20, model.TrafficLow),
		NewTraffic:      *trafficSnap(20, model.TrafficLow),
	}
}

func TestNoDriftNoRefresh(t *testing.T) {
	d := Detector{}
	got := d.Evaluate(baseInputs())
	assert.False(t, got.ShouldRefresh)
	assert.Empty(t, got.Reasons)
	assert.Equal(t, SeverityLow, got.Severity)
}

func TestTemperatureBoundary(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewWeather.TempC = 25.0 // delta exactly 5.0
	got := d.Evaluate(in)
	assert.False(t, got.ShouldRefresh, "a 5.0 degree shift must not trigger")

	in.NewWeather.TempC = 25.1
	got = d.Evaluate(in)
	assert.True(t, got.ShouldRefresh, "a 5.1 degree shift must trigger")
	assert.Contains(t, got.Reasons, ReasonTempShift)
}

func TestPrecipitationFlip(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewWeather.Condition = "rain"
	got := d.Evaluate(in)
	assert.True(t, got.ShouldRefresh)
	assert.Contains(t, got.Reasons, ReasonPrecipChange)

	// The reverse direction triggers too.
	in = baseInputs()
	in.OldWeather = weatherSnap("drizzle", 20)
	in.NewWeather = *weatherSnap("clouds", 20)
	got = d.Evaluate(in)
	assert.Contains(t, got.Reasons, ReasonPrecipChange)

	// Rain to snow is not a flip: both are precipitation.
	in = baseInputs()
	in.OldWeather = weatherSnap("rain", 20)
	in.NewWeather = *weatherSnap("snow", 20)
	got = d.Evaluate(in)
	assert.NotContains(t, got.Reasons, ReasonPrecipChange)
}

func TestExtremeWeatherScenario(t *testing.T) {
	// clear/22C turning into thunderstorm/19C: extreme condition plus a
	// precipitation flip must land at least at HIGH severity.
	d := Detector{}
	in := Inputs{
		OldWeather:      weatherSnap("clear", 22),
		NewWeather:      *weatherSnap("thunderstorm", 19),
		WeatherObserved: true,
		OldTraffic:      trafficSnap(20, model.TrafficLow),
		NewTraffic:      *trafficSnap(20, model.TrafficLow),
	}
	got := d.Evaluate(in)
	require.True(t, got.ShouldRefresh)
	assert.Contains(t, got.Reasons, ReasonExtremeWeather)
	assert.Contains(t, got.Reasons, ReasonPrecipChange)
	assert.Contains(t, []string{SeverityHigh, SeverityCritical}, got.Severity)
}

func TestCriticalIncident(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewTraffic.Samples = []model.TrafficSample{
		{Incidents: []model.Incident{{Kind: "accident", DelayMagnitude: 3}}},
	}
	got := d.Evaluate(in)
	assert.False(t, got.ShouldRefresh, "magnitude 3 is below the critical threshold")

	in.NewTraffic.Samples[0].Incidents[0].DelayMagnitude = 4
	withCritical := d.Evaluate(in)
	assert.True(t, withCritical.ShouldRefresh)
	assert.Contains(t, withCritical.Reasons, ReasonCriticalDelay)
	assert.Greater(t, withCritical.SeverityScore, got.SeverityScore)
	assert.Equal(t, "MEDIUM", withCritical.Severity)
}

func TestTrafficDriftSurfaced(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.OldTraffic.IncidentCount = 1
	in.NewTraffic.AvgCongestion = 55
	in.NewTraffic.AvgLevel = model.TrafficHigh
	in.NewTraffic.Samples = []model.TrafficSample{
		{Incidents: []model.Incident{
			{Kind: "accident", DelayMagnitude: 2},
			{Kind: "closure", DelayMagnitude: 4},
		}},
		{Incidents: []model.Incident{{Kind: "roadworks", DelayMagnitude: 1}}},
	}

	got := d.Evaluate(in)
	assert.InDelta(t, 35.0, got.Traffic.CongestionDelta, 1e-9)
	assert.True(t, got.Traffic.LevelChanged)
	assert.Equal(t, "HIGH", got.Traffic.LevelLabel)
	assert.Equal(t, 2, got.Traffic.NewIncidents, "three incidents now, one at capture time")
	assert.Equal(t, 1, got.Traffic.CriticalIncidents)
}

func TestCongestionSpike(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewTraffic.AvgCongestion = 50 // delta exactly 30
	got := d.Evaluate(in)
	assert.False(t, got.ShouldRefresh)

	in.NewTraffic.AvgCongestion = 51
	got = d.Evaluate(in)
	assert.True(t, got.ShouldRefresh)
	assert.Contains(t, got.Reasons, ReasonCongestionSpike)
}

func TestTrafficAboveCeiling(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewTraffic.AvgLevel = model.TrafficHigh
	got := d.Evaluate(in)
	assert.Contains(t, got.Reasons, ReasonLevelCeiling)

	// A stricter ceiling flags MODERATE readings too.
	in = baseInputs()
	in.LevelCeiling = model.TrafficLow
	in.NewTraffic.AvgLevel = model.TrafficModerate
	got = d.Evaluate(in)
	assert.Contains(t, got.Reasons, ReasonLevelCeiling)
}

func TestSeverityMonotonicInTriggers(t *testing.T) {
	d := Detector{}

	single := baseInputs()
	single.NewWeather.Condition = "rain"
	one := d.Evaluate(single)

	double := single
	double.NewTraffic = *trafficSnap(70, model.TrafficSevere)
	two := d.Evaluate(double)

	assert.Greater(t, two.SeverityScore, one.SeverityScore)
	assert.GreaterOrEqual(t, two.Confidence, one.Confidence)
}

func TestConfidenceCountsAvailableSignals(t *testing.T) {
	d := Detector{}

	// Both signals present: full confidence even with zero drift.
	got := d.Evaluate(baseInputs())
	assert.False(t, got.ShouldRefresh)
	assert.Equal(t, 100.0, got.Confidence)

	// Observed weather only.
	got = d.Evaluate(Inputs{NewWeather: *weatherSnap("clear", 20), WeatherObserved: true})
	assert.Equal(t, 75.0, got.Confidence)

	// Neither signal: the base alone.
	got = d.Evaluate(Inputs{NewWeather: *weatherSnap("clear", 20)})
	assert.Equal(t, 50.0, got.Confidence)
}

func TestConfidenceCapsUnderManyTriggers(t *testing.T) {
	d := Detector{}

	in := baseInputs()
	in.NewWeather = *weatherSnap("thunderstorm", 40)
	in.NewTraffic = *trafficSnap(90, model.TrafficSevere)
	in.NewTraffic.Samples = []model.TrafficSample{
		{Incidents: []model.Incident{{Kind: "closure", DelayMagnitude: 5}}},
	}

	got := d.Evaluate(in)
	require.Len(t, got.Reasons, 6)
	assert.Equal(t, SeverityCritical, got.Severity)
	assert.Equal(t, 100.0, got.Confidence)
}

func TestConfidenceDropsOnFallbackWeather(t *testing.T) {
	d := Detector{}
	in := baseInputs()
	in.NewWeather.Condition = "rain"

	observed := d.Evaluate(in)
	in.WeatherObserved = false
	fallback := d.Evaluate(in)
	assert.Equal(t, observed.Confidence-25, fallback.Confidence, "fallback weather forfeits that signal's credit")
}

func TestMissingOldSnapshotsOnlyAbsoluteTriggers(t *testing.T) {
	d := Detector{}
	in := Inputs{
		NewWeather:      *weatherSnap("thunderstorm", 10),
		WeatherObserved: true,
		NewTraffic:      *trafficSnap(90, model.TrafficSevere),
	}
	got := d.Evaluate(in)
	assert.True(t, got.ShouldRefresh)
	assert.Contains(t, got.Reasons, ReasonExtremeWeather)
	assert.Contains(t, got.Reasons, ReasonLevelCeiling)
	assert.NotContains(t, got.Reasons, ReasonTempShift)
	assert.NotContains(t, got.Reasons, ReasonCongestionSpike)
}
