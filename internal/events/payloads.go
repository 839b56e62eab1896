package events

import "github.com/SparkyLarks/ISA95-bottling-simulator/internal/microstop"

// Payload structs are a tagged union per event type: one Go struct per
// eventType, each embedding Base, per the spec.md §9 redesign note
// ("signal fingerprint as free-form dictionary -> tagged variant per
// microstop code with a compact record of typed fields").

// OrderStarted is emitted when an order begins (IDLE -> RUNNING).
type OrderStarted struct {
	Base
	PlannedQty      uint32 `json:"plannedQty"`
	PlannedStartTS  string `json:"plannedStartTs"`
	PlannedEndTS    string `json:"plannedEndTs"`
}

// OrderCompleted is emitted when an order's counters are finalized.
type OrderCompleted struct {
	Base
	GoodCountDelta   uint32  `json:"goodCountDelta"`
	RejectCountDelta uint32  `json:"rejectCountDelta"`
	DurationMS       int64   `json:"durationMs"`
	Yield            float64 `json:"yield"`
}

// StateChanged is emitted on every state machine transition.
type StateChanged struct {
	Base
	FromState   string  `json:"fromState"`
	ToState     string  `json:"toState"`
	StopCode    *string `json:"stopCode,omitempty"`
	FaultCode   *string `json:"faultCode,omitempty"`
	ReasonID    *string                `json:"reasonId,omitempty"`
	DurationMS  *int64                 `json:"durationMs,omitempty"`
	Fingerprint *microstop.Fingerprint `json:"fingerprint,omitempty"`
}

// MicrostopStarted is emitted when the line enters MICROSTOP.
type MicrostopStarted struct {
	Base
	StopCode    string                 `json:"stopCode"`
	Fingerprint *microstop.Fingerprint `json:"fingerprint"`
}

// MicrostopEnded is emitted when the line leaves MICROSTOP.
type MicrostopEnded struct {
	Base
	StopCode    string                 `json:"stopCode"`
	Fingerprint *microstop.Fingerprint `json:"fingerprint"`
	DurationMS  int64                  `json:"durationMs"`
}

// StopStarted is emitted on entry to a long stop or breakdown episode.
type StopStarted struct {
	Base
	StopCode   string  `json:"stopCode"`
	ReasonID   *string `json:"reasonId,omitempty"`
	ReasonText *string `json:"reasonText,omitempty"`
}

// StopEnded is emitted on exit from a long stop or breakdown episode.
type StopEnded struct {
	Base
	StopCode   string  `json:"stopCode"`
	ReasonID   *string `json:"reasonId,omitempty"`
	ReasonText *string `json:"reasonText,omitempty"`
	DurationMS int64   `json:"durationMs"`
}

// FaultRaised is emitted when a major breakdown latches a fault.
type FaultRaised struct {
	Base
	FaultCode string `json:"faultCode"`
	Severity  string `json:"severity"`
	Station   string `json:"station"`
}

// FaultCleared is emitted when a latched fault is cleared.
type FaultCleared struct {
	Base
	FaultCode string `json:"faultCode"`
	Severity  string `json:"severity"`
	Station   string `json:"station"`
}

// ChangeoverStarted is emitted on entry to CHANGEOVER.
type ChangeoverStarted struct {
	Base
	ChangeoverType string `json:"changeoverType"`
}

// ChangeoverCompleted is emitted on exit from CHANGEOVER.
type ChangeoverCompleted struct {
	Base
	ChangeoverType string `json:"changeoverType"`
}

// CIPStarted is emitted on entry to CIP.
type CIPStarted struct {
	Base
}

// CIPEnded is emitted on exit from CIP.
type CIPEnded struct {
	Base
	DurationMS int64 `json:"durationMs"`
}

// BottleCompleted is emitted for a sampled fraction of bottle completions
// (spec.md §4.4, default 2% of GOOD and 100% of REJECT per the Open
// Questions resolution in DESIGN.md).
type BottleCompleted struct {
	Base
	Result       string   `json:"result"`
	Station      string   `json:"station"`
	RejectReason *string  `json:"rejectReason,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	Torque       *float64 `json:"torque,omitempty"`
}

// TransactionRejected is emitted when an event fails to be accepted
// (spec.md §7); it is itself an event so no rejection is silently dropped.
type TransactionRejected struct {
	Base
	RejectedEventType string   `json:"rejectedEventType"`
	RejectedEventID   string   `json:"rejectedEventId"`
	Reasons           []string `json:"reasons"`
}
