// Package breakdown defines the major breakdowns BD-M1..BD-M3 and minor
// (operator-coded, ST-range) breakdowns, per spec.md §4.8.
package breakdown

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
)

// Major is a major breakdown definition: a faulting condition that forces a
// fault_code latch for roughly an hour.
type Major struct {
	Code        string
	Station     string
	Severity    string
	NominalMin  int // nominal duration, minutes
	Apply       func(w *registers.Writer)
	Revert      func(w *registers.Writer)
}

// Majors is the BD-M1..BD-M3 table (spec.md §4.8).
var Majors = map[string]Major{
	"BD-M1": {
		Code: "BD-M1", Station: "filler", Severity: "major", NominalMin: 60,
		Apply: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, registers.FaultCode("BD-M1"))
			w.SetBool(registers.AddrScaleStable, false)
		},
		Revert: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, 0)
			w.SetBool(registers.AddrScaleStable, true)
		},
	},
	"BD-M2": {
		Code: "BD-M2", Station: "capper", Severity: "major", NominalMin: 60,
		Apply: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, registers.FaultCode("BD-M2"))
			w.SetBool(registers.AddrTorqueInSpec, false)
		},
		Revert: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, 0)
			w.SetBool(registers.AddrTorqueInSpec, true)
		},
	},
	"BD-M3": {
		Code: "BD-M3", Station: "checkweigher", Severity: "major", NominalMin: 60,
		Apply: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, registers.FaultCode("BD-M3"))
			w.SetBool(registers.AddrRezeroActive, true)
		},
		Revert: func(w *registers.Writer) {
			w.SetUint16(registers.AddrFaultCode, 0)
			w.SetBool(registers.AddrRezeroActive, false)
		},
	},
}

// MajorCodes lists BD-M1..BD-M3 in order.
var MajorCodes = []string{"BD-M1", "BD-M2", "BD-M3"}

// DrawMajorDuration samples a major breakdown duration within +/-10% of its
// nominal duration (spec.md §4.8).
func DrawMajorDuration(m Major) time.Duration {
	nominal := time.Duration(m.NominalMin) * time.Minute
	jitterPct := (randFloat()*0.2 - 0.1) // [-0.1, 0.1]
	return nominal + time.Duration(float64(nominal)*jitterPct)
}

// MinorDef is a minor (operator-coded) breakdown: a 5-20 minute STOPPED
// episode with no fault latch, spec.md §4.8.
type MinorDef struct {
	Code     string
	ReasonID string
}

// DrawMinorDuration samples a minor breakdown's duration uniformly in
// [5,20] minutes.
func DrawMinorDuration() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(16))
	mins := 5
	if err == nil {
		mins = 5 + int(n.Int64())
	}
	return time.Duration(mins) * time.Minute
}

func randFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / 1_000_000
}
