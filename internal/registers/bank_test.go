package registers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint16RoundTrip(t *testing.T) {
	b := New()
	b.Update(func(w *Writer) { w.SetUint16(AddrLineState, 4) })
	assert.Equal(t, uint16(4), b.ReadUint16(AddrLineState))
}

func TestUint32RoundTripHighWordFirst(t *testing.T) {
	b := New()
	b.Update(func(w *Writer) { w.SetUint32(AddrGoodCountHi, 0x00012345) })
	assert.Equal(t, uint32(0x00012345), b.ReadUint32(AddrGoodCountHi))

	words := b.Snapshot(AddrGoodCountHi, 2)
	assert.Equal(t, uint16(0x0001), words[0], "high word must be written first")
	assert.Equal(t, uint16(0x2345), words[1])
}

func TestFloat32RoundTrip(t *testing.T) {
	b := New()
	b.Update(func(w *Writer) { w.SetFloat32(AddrLineSpeedBPM, 59.875) })
	assert.InDelta(t, 59.875, b.ReadFloat32(AddrLineSpeedBPM), 0.001)
}

func TestBoolRoundTrip(t *testing.T) {
	b := New()
	b.Update(func(w *Writer) { w.SetBool(AddrCIPActive, true) })
	assert.Equal(t, uint16(1), b.ReadUint16(AddrCIPActive))

	b.Update(func(w *Writer) { w.SetBool(AddrCIPActive, false) })
	assert.Equal(t, uint16(0), b.ReadUint16(AddrCIPActive))
}

func TestSnapshotIgnoresOutOfRangeAddresses(t *testing.T) {
	b := New()
	words := b.Snapshot(BankSize-1, 4)
	assert.Len(t, words, 4)
}

// TestConcurrentUpdateAndSnapshotNeverTorn exercises the seqlock-style
// guarantee: a reader must never observe half of a 32-bit write from one
// tick and half from the next (spec.md testable property 7).
func TestConcurrentUpdateAndSnapshotNeverTorn(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		toggle := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			toggle = !toggle
			var v uint32 = 0x00000000
			if toggle {
				v = 0xffffffff
			}
			b.Update(func(w *Writer) { w.SetUint32(AddrGoodCountHi, v) })
		}
	}()

	for i := 0; i < 2000; i++ {
		v := b.ReadUint32(AddrGoodCountHi)
		if v != 0x00000000 && v != 0xffffffff {
			close(stop)
			wg.Wait()
			t.Fatalf("observed torn read: 0x%08x", v)
		}
	}
	close(stop)
	wg.Wait()
}
