// Package domain holds the shared value types for the bottling line digital
// twin: SKUs, orders, schedule blocks, line states, stop episodes and the
// ISA-95 hierarchy identifiers stamped onto every emitted event.
package domain

import (
	"time"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/microstop"
)

// HierarchyIDs is the ISA-95 enterprise/site/area/line naming tuple embedded
// in every emitted event and used to address the simulated line.
type HierarchyIDs struct {
	Enterprise string `yaml:"enterprise"`
	Site       string `yaml:"site"`
	Area       string `yaml:"area"`
	Line       string `yaml:"line"`
}

// Station is a named physical station on the line that owns a subset of
// telemetry signals (filler, capper, labeler, checkweigher, ...).
type Station string

const (
	StationFiller       Station = "filler"
	StationCapper       Station = "capper"
	StationLabeler      Station = "labeler"
	StationCheckweigher Station = "checkweigher"
	StationCasePacker   Station = "case_packer"
)

// SKU is a catalogue entry: one liquid/bottle/label combination with its
// fill and torque targets.
type SKU struct {
	ID             string  `yaml:"id"`
	LiquidID       string  `yaml:"liquid_id"`
	VolumeML       float64 `yaml:"volume_ml"`
	HazardRequired bool    `yaml:"hazard_required"`
	FillTargetG    float64 `yaml:"fill_target_g"`
	TorqueTargetNm float64 `yaml:"torque_target_ncm"`
	NominalBPM     float64 `yaml:"nominal_bpm"`
	RejectRate     float64 `yaml:"reject_rate"`
}

// Order is a scheduled production run of a single SKU.
type Order struct {
	OrderID      string    `yaml:"order_id"`
	SKUID        string    `yaml:"sku_id"`
	PlannedStart time.Time `yaml:"planned_start"`
	PlannedEnd   time.Time `yaml:"planned_end"`
	PlannedQty   uint32    `yaml:"planned_qty"`
}

// BlockKind enumerates the kinds of scheduled block on the line timeline.
type BlockKind string

const (
	BlockOrder      BlockKind = "ORDER"
	BlockChangeover BlockKind = "CHANGEOVER"
	BlockCIP        BlockKind = "CIP"
	BlockLunch      BlockKind = "LUNCH"
	BlockBreakdown  BlockKind = "BREAKDOWN"
)

// ChangeoverType enumerates the reason for a CHANGEOVER block.
type ChangeoverType string

const (
	ChangeoverLabel  ChangeoverType = "LABEL"
	ChangeoverSize   ChangeoverType = "SIZE"
	ChangeoverLiquid ChangeoverType = "LIQUID"
)

// ScheduledBlock is a single, read-only entry on the line's time-ordered
// schedule: an order, a changeover, a CIP run, a lunch break, or a planned
// breakdown.
type ScheduledBlock struct {
	Kind  BlockKind `yaml:"kind"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`

	// Order is populated when Kind == BlockOrder.
	Order *Order `yaml:"order,omitempty"`
	// ChangeoverType is populated when Kind == BlockChangeover.
	ChangeoverType ChangeoverType `yaml:"changeover_type,omitempty"`
	// BreakdownCode is populated when Kind == BlockBreakdown: BD-M1..BD-M3
	// for a major breakdown, an ST code for a minor one.
	BreakdownCode string `yaml:"breakdown_code,omitempty"`
}

// State is the line's operational mode.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateMicrostop
	StateStopped
	StateFault
	StateChangeover
	StateCIP
	StateStarved
	StateBlocked
)

// String renders a State using its event-log name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateMicrostop:
		return "MICROSTOP"
	case StateStopped:
		return "STOPPED"
	case StateFault:
		return "FAULT"
	case StateChangeover:
		return "CHANGEOVER"
	case StateCIP:
		return "CIP"
	case StateStarved:
		return "STARVED"
	case StateBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// RegisterCode returns the line_state value documented in the Modbus
// register table. STARVED and BLOCKED fold onto STOPPED (3) at the register
// surface and are distinguished via stop_code, per the encoding documented
// in DESIGN.md.
func (s State) RegisterCode() uint16 {
	switch s {
	case StateIdle:
		return 0
	case StateRunning:
		return 1
	case StateMicrostop:
		return 2
	case StateStopped, StateStarved, StateBlocked:
		return 3
	case StateFault:
		return 4
	case StateChangeover:
		return 5
	case StateCIP:
		return 6
	default:
		return 0
	}
}

// StopEpisode tracks a single open or closed stop (microstop, long stop, or
// breakdown) for duration accounting and fingerprint attachment. PlannedEnd
// is the virtual timestamp drawn at entry (microstop.DrawDuration /
// breakdown.DrawMinorDuration) at which the episode closes on its own,
// absent an overriding FAULT.
type StopEpisode struct {
	StopCode    string
	StartTS     time.Time
	PlannedEnd  time.Time
	EndTS       time.Time
	Closed      bool
	Fingerprint *microstop.Fingerprint
}

// DurationMS returns the closed episode's duration in whole milliseconds.
func (e *StopEpisode) DurationMS() int64 {
	if !e.Closed {
		return 0
	}
	return e.EndTS.Sub(e.StartTS).Milliseconds()
}

// Counters tracks the line's cumulative, never-reset good/reject tallies.
type Counters struct {
	GoodCount   uint32
	RejectCount uint32
}

// RejectReason enumerates why a bottle was rejected.
type RejectReason string

const (
	RejectWeight  RejectReason = "weight"
	RejectTorque  RejectReason = "torque"
	RejectBarcode RejectReason = "barcode"
	RejectLabel   RejectReason = "label"
	RejectHazard  RejectReason = "hazard"
)

// RejectReasonCode returns the reject_reason register encoding (§6).
func RejectReasonCode(r RejectReason) uint16 {
	switch r {
	case RejectWeight:
		return 1
	case RejectTorque:
		return 2
	case RejectBarcode:
		return 3
	case RejectLabel:
		return 4
	case RejectHazard:
		return 5
	default:
		return 0
	}
}
