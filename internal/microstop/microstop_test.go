package microstop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
)

func TestDrawDurationStaysWithinClampedBounds(t *testing.T) {
	for _, code := range Codes {
		def := Defs[code]
		for i := 0; i < 200; i++ {
			d := DrawDuration(def)
			assert.GreaterOrEqual(t, d.Seconds(), float64(MinSeconds), "%s duration below MinSeconds", code)
			assert.LessOrEqual(t, d.Seconds(), float64(MaxSeconds), "%s duration above MaxSeconds", code)
		}
	}
}

func TestEveryCodeHasADef(t *testing.T) {
	assert.Len(t, Codes, 10)
	for _, code := range Codes {
		_, ok := Defs[code]
		assert.True(t, ok, "missing Def for %s", code)
	}
}

func TestLookupUnknownCodeErrors(t *testing.T) {
	_, err := Lookup("MS99")
	assert.Error(t, err)
}

func TestApplyThenRevertRestoresRegisterState(t *testing.T) {
	bank := registers.New()
	bank.Update(func(w *registers.Writer) {
		w.SetBool(registers.AddrBottlePresent, true)
		w.SetFloat32(registers.AddrInfeedRateBPM, 60)
	})

	def := Defs["MS01"]
	bank.Update(func(w *registers.Writer) { def.Apply(w, 60, 0) })
	assert.Equal(t, uint16(0), bank.ReadUint16(registers.AddrBottlePresent))

	bank.Update(func(w *registers.Writer) { def.Revert(w, 60, 0) })
	assert.Equal(t, uint16(1), bank.ReadUint16(registers.AddrBottlePresent))
	assert.InDelta(t, 60, bank.ReadFloat32(registers.AddrInfeedRateBPM), 0.01)
}

func TestFingerprintPopulatesDocumentedFields(t *testing.T) {
	fp := Defs["MS01"].Fingerprint(60, 0)
	if assert.NotNil(t, fp.BottlePresence) {
		assert.False(t, *fp.BottlePresence)
	}
	if assert.NotNil(t, fp.InfeedRateBPM) {
		assert.InDelta(t, 30, *fp.InfeedRateBPM, 0.01)
	}
}
