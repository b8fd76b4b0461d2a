package model

import "time"

// Activity is immutable catalog reference data, created at catalog load.
type Activity struct {
	ActivityID  string   `json:"activityId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Tags        []string `json:"tags,omitempty"`
	// OpenHours is the declared time window as free text, e.g. "9:00 AM - 5:00 PM"
	// or "24 hours". Parsed heuristically by the search index and scheduler.
	OpenHours       string  `json:"openHours"`
	DurationMinutes int     `json:"durationMinutes"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Popularity      float64 `json:"popularity"`
	BudgetTier      string  `json:"budgetTier,omitempty"`
}

// TimeSlot classifies when an activity is best visited.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotAnytime   TimeSlot = "anytime"
)

// IndexedActivity is an Activity enriched with derived search fields.
// Owned exclusively by the search index; rebuilt wholesale, never patched.
type IndexedActivity struct {
	Activity
	SearchTokens    []string           `json:"searchTokens"`
	CategoryScores  map[string]float64 `json:"categoryScores"`
	TimeSlot        TimeSlot           `json:"timeSlot"`
	PopularityScore float64            `json:"popularityScore"`
	LastUpdated     time.Time          `json:"lastUpdated"`
}

// RankedCandidate is a transient, per-request ranking result.
type RankedCandidate struct {
	Activity   Activity `json:"activity"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons,omitempty"`
	// TrafficTag is set by the traffic filter for admitted candidates
	// ("low-traffic" or "moderate-traffic").
	TrafficTag string `json:"trafficTag,omitempty"`
}

// TrafficLevel is the ordinal congestion scale reported by the traffic provider.
type TrafficLevel int

const (
	TrafficVeryLow TrafficLevel = iota + 1
	TrafficLow
	TrafficModerate
	TrafficHigh
	TrafficSevere
)

func (l TrafficLevel) String() string {
	switch l {
	case TrafficVeryLow:
		return "VERY_LOW"
	case TrafficLow:
		return "LOW"
	case TrafficModerate:
		return "MODERATE"
	case TrafficHigh:
		return "HIGH"
	case TrafficSevere:
		return "SEVERE"
	}
	return "UNKNOWN"
}

// ParseTrafficLevel maps a provider label to its ordinal. Unknown labels map
// to SEVERE so callers inherit the fail-closed default.
func ParseTrafficLevel(s string) TrafficLevel {
	switch s {
	case "VERY_LOW":
		return TrafficVeryLow
	case "LOW":
		return TrafficLow
	case "MODERATE":
		return TrafficModerate
	case "HIGH":
		return TrafficHigh
	case "SEVERE":
		return TrafficSevere
	}
	return TrafficSevere
}

// Incident is a single road incident reported near a location.
type Incident struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	// DelayMagnitude is the provider's 0-5 delay rating; >=4 is critical.
	DelayMagnitude int `json:"delayMagnitude"`
}

// TrafficSample is one live reading at an activity's coordinates.
type TrafficSample struct {
	Latitude        float64      `json:"latitude"`
	Longitude       float64      `json:"longitude"`
	CongestionScore float64      `json:"congestionScore"`
	Level           TrafficLevel `json:"level"`
	CrowdLevel      string       `json:"crowdLevel,omitempty"`
	Recommendation  string       `json:"recommendation,omitempty"`
	Incidents       []Incident   `json:"incidents,omitempty"`
}

// TrafficSnapshot is a timestamped capture of traffic conditions attached to a plan.
type TrafficSnapshot struct {
	AvgCongestion float64         `json:"avgCongestion"`
	AvgLevel      TrafficLevel    `json:"avgLevel"`
	IncidentCount int             `json:"incidentCount"`
	Samples       []TrafficSample `json:"samples,omitempty"`
	CapturedAt    time.Time       `json:"capturedAt"`
}

// WeatherSnapshot is a timestamped capture of weather conditions.
type WeatherSnapshot struct {
	Condition  string    `json:"condition"`
	TempC      float64   `json:"tempC"`
	CapturedAt time.Time `json:"capturedAt"`
}

// PlanItem is one scheduled activity inside a day.
type PlanItem struct {
	Period   TimeSlot  `json:"period"`
	Activity Activity  `json:"activity"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// PlanDay is an ordered list of placements for a single trip day.
type PlanDay struct {
	DayIndex int        `json:"dayIndex"`
	Items    []PlanItem `json:"items"`
}

// ItineraryDraft is the scheduler output, persisted by the store as a plan body.
type ItineraryDraft struct {
	Days []PlanDay `json:"days"`
}

// RefreshMetadata tracks change-detection state for a persisted plan.
// Mutated only by the refresh service and the rebuild orchestrator.
type RefreshMetadata struct {
	LastEvaluated    *time.Time `json:"lastEvaluated,omitempty"`
	LastRefreshed    *time.Time `json:"lastRefreshed,omitempty"`
	Reasons          []string   `json:"reasons,omitempty"`
	Status           string     `json:"status,omitempty"`
	RefreshCount     int        `json:"refreshCount"`
	CountWindowStart time.Time  `json:"countWindowStart"`
	AutoRefresh      bool       `json:"autoRefresh"`
}

// Plan is a persisted itinerary with the snapshots it was built under.
type Plan struct {
	PlanID       string           `json:"planId"`
	OwnerID      string           `json:"ownerId"`
	Title        string           `json:"title"`
	Query        string           `json:"query"`
	Interests    []string         `json:"interests,omitempty"`
	Days         int              `json:"days"`
	GroupSize    int              `json:"groupSize"`
	Latitude     float64          `json:"latitude,omitempty"`
	Longitude    float64          `json:"longitude,omitempty"`
	Draft        ItineraryDraft   `json:"draft"`
	Weather      *WeatherSnapshot `json:"weather,omitempty"`
	Traffic      *TrafficSnapshot `json:"traffic,omitempty"`
	Refresh      RefreshMetadata  `json:"refresh"`
	CreationTime time.Time        `json:"creationTime"`
}

// MenuItem is a member of the budget allocator's eligible item pool.
type MenuItem struct {
	ItemID     string  `json:"itemId"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Popularity float64 `json:"popularity"`
}

// BudgetAllocation is the transient result of a budget-constrained selection.
type BudgetAllocation struct {
	Items           []MenuItem `json:"items"`
	TotalCost       float64    `json:"totalCost"`
	RemainingBudget float64    `json:"remainingBudget"`
	UtilizationPct  float64    `json:"utilizationPct"`
	ValueScore      float64    `json:"valueScore"`
	DiversityScore  float64    `json:"diversityScore"`
	Advisories      []string   `json:"advisories,omitempty"`
	// Reasons carries degradation reason codes, e.g. best-effort selection.
	Reasons []string `json:"reasons,omitempty"`
}
