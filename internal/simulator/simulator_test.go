package simulator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/breakdown"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/catalogue"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/clock"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/config"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/events"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/microstop"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/schedule"
)

type nopLogger struct{}

func (nopLogger) Info(string)                     {}
func (nopLogger) Infof(string, ...interface{})    {}
func (nopLogger) Warning(string)                  {}
func (nopLogger) Warningf(string, ...interface{}) {}
func (nopLogger) Error(string)                    {}
func (nopLogger) Errorf(string, ...interface{})   {}
func (nopLogger) Fatal(string)                    {}
func (nopLogger) Fatalf(string, ...interface{})   {}

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newTestSimulator(t *testing.T, start time.Time, plannedQty uint32) (*Simulator, *clock.FakeClock, *registers.Bank) {
	t.Helper()

	catPath := writeTempFile(t, "catalogue.yaml", `
skus:
  - id: SKU-TEST
    volume_ml: 500
    fill_target_g: 500
    torque_target_ncm: 12
    nominal_bpm: 600
    reject_rate: 0
`)
	cat, err := catalogue.FileLoader{Path: catPath}.Load()
	require.NoError(t, err)

	schedPath := writeTempFile(t, "schedule.yaml", `
blocks:
  - kind: ORDER
    start: `+start.Format(time.RFC3339)+`
    end: `+start.Add(time.Hour).Format(time.RFC3339)+`
    order:
      order_id: ORD-1
      sku_id: SKU-TEST
      planned_start: `+start.Format(time.RFC3339)+`
      planned_end: `+start.Add(time.Hour).Format(time.RFC3339)+`
      planned_qty: `+itoa(plannedQty)+`
`)
	sched, err := schedule.FileLoader{Path: schedPath}.Load()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.TickIntervalMS = 100
	cfg.Microstop.Rates = map[string]float64{}
	cfg.Breakdowns.MinorRatePerTick = 0

	bank := registers.New()
	emitter, err := events.Open(filepath.Join(t.TempDir(), "transactions.jsonl"), 256, nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { emitter.Close() })

	clk := clock.NewFake(start)

	sim := New(clk, bank, emitter, cat, sched, cfg, nopLogger{})
	return sim, clk, bank
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := make([]byte, 0, 10)
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestTickTransitionsIdleToRunningOnOrderStart(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, _, bank := newTestSimulator(t, start, 5)

	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateRunning, sim.sm.State())
	require.Equal(t, domain.StateRunning.RegisterCode(), bank.ReadUint16(registers.AddrLineState))
	require.Equal(t, uint16(0), bank.ReadUint16(registers.AddrOrderIndex))
	require.Equal(t, uint16(0), bank.ReadUint16(registers.AddrSKUIndex))
}

func TestOrderCompletesAfterPlannedQuantityProduced(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, clk, bank := newTestSimulator(t, start, 5)

	for i := 0; i < 20; i++ {
		require.NoError(t, sim.tick())
		clk.Advance(sim.cfg.TickInterval())
	}

	require.Nil(t, sim.activeOrder, "order should have completed and cleared")
	good := bank.ReadUint32(registers.AddrGoodCountHi)
	require.Equal(t, uint32(5), good)
	require.Equal(t, registers.IdleIndex, bank.ReadUint16(registers.AddrOrderIndex))
}

func TestRunHonorsContextCancellation(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, _, _ := newTestSimulator(t, start, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

// TestMicrostopEpisodeClosesAfterPlannedEnd covers scenario S2 (SPEC_FULL.md
// §8): a microstop injected mid-run must close itself, and release the line
// back to RUNNING, once virtual time passes its planned end, with no FAULT
// involved.
func TestMicrostopEpisodeClosesAfterPlannedEnd(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, clk, _ := newTestSimulator(t, start, 100)

	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateRunning, sim.sm.State())

	now := clk.Now()
	fp := microstop.Defs["MS02"].Fingerprint(sim.nominalBPM(), sim.fillTimeMS())
	sim.stopEpisode = &domain.StopEpisode{
		StopCode:    "MS02",
		StartTS:     now,
		PlannedEnd:  now.Add(10 * time.Second),
		Fingerprint: &fp,
	}

	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateMicrostop, sim.sm.State(), "MICROSTOP must win over RUNNING while the episode is open")
	require.NotNil(t, sim.stopEpisode)

	clk.Advance(5 * time.Second)
	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateMicrostop, sim.sm.State(), "episode should still be open before its planned end")

	clk.Advance(6 * time.Second)
	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateRunning, sim.sm.State(), "line should return to RUNNING once the planned end has passed")
	require.Nil(t, sim.stopEpisode, "episode must be closed and cleared, not left dangling")
}

// TestLatchedFaultOverridesStopThenClearsAfterPlannedEnd covers scenario S3
// (SPEC_FULL.md §8): a major breakdown overrides any in-progress stop
// episode and latches FAULT; once virtual time passes the fault's planned
// end, the line clears the fault and returns to RUNNING.
func TestLatchedFaultOverridesStopThenClearsAfterPlannedEnd(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim, clk, _ := newTestSimulator(t, start, 100)

	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateRunning, sim.sm.State())

	now := clk.Now()
	sim.stopEpisode = &domain.StopEpisode{
		StopCode:   "ST01",
		StartTS:    now,
		PlannedEnd: now.Add(time.Hour),
	}

	sim.latchFault(now, breakdown.Majors["BD-M2"])
	require.True(t, sim.stopEpisode == nil || sim.stopEpisode.Closed, "latching a fault must close any open stop episode")
	require.Equal(t, "BD-M2", sim.faultCode)

	// Override the real ~60 minute draw with a short test-controlled one so
	// the test doesn't need to tick through an hour of virtual time.
	sim.faultPlannedEnd = now.Add(10 * time.Second)

	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateFault, sim.sm.State(), "FAULT must take precedence over RUNNING while latched")

	clk.Advance(5 * time.Second)
	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateFault, sim.sm.State(), "fault should still be latched before its planned end")

	clk.Advance(6 * time.Second)
	require.NoError(t, sim.tick())
	require.Equal(t, domain.StateRunning, sim.sm.State(), "line should return to RUNNING once the fault clears")
	require.Equal(t, "", sim.faultCode, "faultCode must be cleared once the latched fault ends")
}
