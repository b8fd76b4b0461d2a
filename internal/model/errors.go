package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// Degradation reason codes carried on partial results. Runtime failures never
// surface as hard errors to callers; they degrade with one of these attached.
const (
	ReasonRetrievalUnavailable = "retrieval-unavailable"
	ReasonTrafficUnknown       = "traffic-unknown"
	ReasonWeatherUnavailable   = "weather-unavailable"
	ReasonSchedulingPartial    = "scheduling-partial"
	ReasonBudgetBestEffort     = "budget-best-effort"
	ReasonDraftingMalformed    = "drafting-malformed"
)
