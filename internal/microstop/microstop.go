// Package microstop defines MS01..MS10: typical duration ranges, affected
// signals, fingerprint templates, and the register on/off effect of each
// microstop (spec.md §4.7).
package microstop

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
)

// MinSeconds and MaxSeconds are the hard bounds every microstop duration is
// clamped to, per spec.md §4.7 (MICROSTOP_MIN_SEC / MICROSTOP_MAX_SEC).
const (
	MinSeconds = 3
	MaxSeconds = 120
)

// Fingerprint is a typed record of the signal values captured at a
// microstop's entry, per the spec.md §9 redesign note ("signal fingerprint
// as free-form dictionary -> a tagged variant per microstop code with a
// compact record of typed fields"). Fields are populated selectively by
// each Def's Fingerprint func; the JSON shape omits unset fields.
type Fingerprint struct {
	BottlePresence      *bool    `json:"bottle_presence,omitempty"`
	InfeedRateBPM       *float64 `json:"infeed_rate_bpm,omitempty"`
	ScaleStable         *bool    `json:"scale_stable,omitempty"`
	FillTimeDeltaMS     *float64 `json:"fill_time_delta_ms,omitempty"`
	DripSensor          *bool    `json:"drip_sensor,omitempty"`
	PostFillDelayMS     *float64 `json:"post_fill_delay_ms,omitempty"`
	CapFeedOK           *bool    `json:"cap_feed_ok,omitempty"`
	TorqueInSpecToggles *int     `json:"torque_in_spec_toggle_count,omitempty"`
	RezeroActive        *bool    `json:"rezero_active,omitempty"`
	LabelSensorToggles  *int     `json:"label_sensor_ok_toggles,omitempty"`
	RescanCount         *int     `json:"rescan_count,omitempty"`
	PusherCycleMS       *float64 `json:"pusher_cycle_ms,omitempty"`
	OutfeedFull         *bool    `json:"outfeed_full,omitempty"`
	LineSpeedDipPct     *int     `json:"line_speed_dip_pct,omitempty"`
}

// Def is a microstop definition: its code, duration range, the register
// effect applied on entry/reverted on exit, and the fingerprint captured at
// entry.
type Def struct {
	Code           string
	MinSec, MaxSec int
	// Apply writes the microstop's forced register values. It is called
	// once on entry; Revert writes the nominal (non-stopped) values of the
	// same signals on exit.
	Apply  func(w *registers.Writer, nominalBPM, fillTimeMS float64)
	Revert func(w *registers.Writer, nominalBPM, fillTimeMS float64)
	// Fingerprint builds the typed fingerprint captured at entry.
	Fingerprint func(nominalBPM, fillTimeMS float64) Fingerprint
}

// Defs is the MS01..MS10 table (spec.md §4.7).
var Defs = map[string]Def{
	"MS01": {
		Code: "MS01", MinSec: 6, MaxSec: 25,
		Apply: func(w *registers.Writer, nominalBPM, _ float64) {
			w.SetBool(registers.AddrBottlePresent, false)
			w.SetFloat32(registers.AddrInfeedRateBPM, float32(nominalBPM*0.5))
		},
		Revert: func(w *registers.Writer, nominalBPM, _ float64) {
			w.SetBool(registers.AddrBottlePresent, true)
			w.SetFloat32(registers.AddrInfeedRateBPM, float32(nominalBPM))
		},
		Fingerprint: func(nominalBPM, _ float64) Fingerprint {
			bp := false
			rate := nominalBPM * 0.5
			return Fingerprint{BottlePresence: &bp, InfeedRateBPM: &rate}
		},
	},
	"MS02": {
		Code: "MS02", MinSec: 8, MaxSec: 40,
		Apply: func(w *registers.Writer, _, fillTimeMS float64) {
			w.SetBool(registers.AddrScaleStable, false)
			delta := fillTimeMS * (0.15 + 0.25*randFloat())
			w.SetFloat32(registers.AddrFillTimeMS, float32(fillTimeMS+delta))
		},
		Revert: func(w *registers.Writer, _, fillTimeMS float64) {
			w.SetBool(registers.AddrScaleStable, true)
			w.SetFloat32(registers.AddrFillTimeMS, float32(fillTimeMS))
		},
		Fingerprint: func(_, fillTimeMS float64) Fingerprint {
			ss := false
			delta := fillTimeMS * 0.25
			return Fingerprint{ScaleStable: &ss, FillTimeDeltaMS: &delta}
		},
	},
	"MS03": {
		Code: "MS03", MinSec: 5, MaxSec: 20,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrDripSensor, true)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrDripSensor, false)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			ds := true
			delay := 250.0
			return Fingerprint{DripSensor: &ds, PostFillDelayMS: &delay}
		},
	},
	"MS04": {
		Code: "MS04", MinSec: 10, MaxSec: 50,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrCapFeedOK, false)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrCapFeedOK, true)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			ok := false
			return Fingerprint{CapFeedOK: &ok}
		},
	},
	"MS05": {
		Code: "MS05", MinSec: 12, MaxSec: 60,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrTorqueInSpec, false)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrTorqueInSpec, true)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			n := 2
			return Fingerprint{TorqueInSpecToggles: &n}
		},
	},
	"MS06": {
		Code: "MS06", MinSec: 10, MaxSec: 90,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrRezeroActive, true)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrRezeroActive, false)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			r := true
			return Fingerprint{RezeroActive: &r}
		},
	},
	"MS07": {
		Code: "MS07", MinSec: 8, MaxSec: 45,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrLabelSensorOK, false)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrLabelSensorOK, true)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			n := 3
			return Fingerprint{LabelSensorToggles: &n}
		},
	},
	"MS08": {
		Code: "MS08", MinSec: 5, MaxSec: 30,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrBarcodeOK, false)
			w.SetUint16(registers.AddrRescanCount, 1)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrBarcodeOK, true)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			n := 1
			return Fingerprint{RescanCount: &n}
		},
	},
	"MS09": {
		Code: "MS09", MinSec: 8, MaxSec: 35,
		Apply: func(w *registers.Writer, nominalBPM, _ float64) {
			nominalCycleMS := 60000.0 / nominalBPM
			w.SetFloat32(registers.AddrPusherCycleMS, float32(nominalCycleMS*1.6))
		},
		Revert: func(w *registers.Writer, nominalBPM, _ float64) {
			nominalCycleMS := 60000.0 / nominalBPM
			w.SetFloat32(registers.AddrPusherCycleMS, float32(nominalCycleMS))
		},
		Fingerprint: func(nominalBPM, _ float64) Fingerprint {
			v := (60000.0 / nominalBPM) * 1.6
			return Fingerprint{PusherCycleMS: &v}
		},
	},
	"MS10": {
		Code: "MS10", MinSec: 15, MaxSec: 120,
		Apply: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrOutfeedFull, true)
			w.SetUint16(registers.AddrLineSpeedDip, 35)
		},
		Revert: func(w *registers.Writer, _, _ float64) {
			w.SetBool(registers.AddrOutfeedFull, false)
			w.SetUint16(registers.AddrLineSpeedDip, 0)
		},
		Fingerprint: func(_, _ float64) Fingerprint {
			of := true
			dip := 35
			return Fingerprint{OutfeedFull: &of, LineSpeedDipPct: &dip}
		},
	},
}

// Codes lists MS01..MS10 in order, for deterministic iteration by the
// per-tick Bernoulli sampler.
var Codes = []string{"MS01", "MS02", "MS03", "MS04", "MS05", "MS06", "MS07", "MS08", "MS09", "MS10"}

// DrawDuration samples a uniform duration within def's range, clamped to
// [MinSeconds, MaxSeconds] (spec.md §4.7).
func DrawDuration(def Def) time.Duration {
	lo, hi := def.MinSec, def.MaxSec
	if lo < MinSeconds {
		lo = MinSeconds
	}
	if hi > MaxSeconds {
		hi = MaxSeconds
	}
	if hi <= lo {
		return time.Duration(lo) * time.Second
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	secs := lo
	if err == nil {
		secs = lo + int(n.Int64())
	}
	return time.Duration(secs) * time.Second
}

func randFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / 1_000_000
}

// Lookup returns the Def for a code, erroring on an unknown one.
func Lookup(code string) (Def, error) {
	d, ok := Defs[code]
	if !ok {
		return Def{}, fmt.Errorf("unknown microstop code %q", code)
	}
	return d, nil
}
