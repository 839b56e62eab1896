// Package simulator implements the tick loop: advancing virtual time,
// injecting microstops/breakdowns per a stochastic process, advancing
// fill/cap/label cycles per SKU, updating the register bank, incrementing
// counters, and driving the state machine (spec.md §4.6).
package simulator

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/breakdown"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/catalogue"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/clock"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/config"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/events"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/logging"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/microstop"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/schedule"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/statemachine"
)

// Simulator is the sole writer of the register bank and counters, and the
// sole caller of the state machine (spec.md §3 ownership rule). One
// instance per process, passed around as an explicit value rather than
// held as a package-level global (spec.md §9 redesign note).
type Simulator struct {
	clock     clock.Clock
	bank      *registers.Bank
	sm        *statemachine.Machine
	emitter   *events.Emitter
	cat       *catalogue.Catalogue
	sched     *schedule.Schedule
	cfg       config.Config
	logger    logging.LeveledLogger
	simID     string
	startedAt time.Time

	counters domain.Counters

	activeOrder      *domain.Order
	activeSKU        domain.SKU
	activeSKUIndex   int
	activeOrderIndex int
	orderSeq         int
	orderStartTS     time.Time
	orderGoodDelta   uint32
	orderRejectDelta uint32
	startedOrderIDs  map[string]bool

	lastRejectReason domain.RejectReason
	lastWeight       float64
	lastTorque       float64
	lastFillTimeMS   float64

	firedBreakdownBlocks map[time.Time]bool

	stopEpisode     *domain.StopEpisode
	faultCode       string    // BD-M1/BD-M2/BD-M3 while latched, else ""
	faultPlannedEnd time.Time // virtual timestamp at which the latched fault clears on its own

	sinceLastBottle time.Duration
	lastBottleTimes []time.Time // rolling window for line_speed_bpm

	changeoverType domain.ChangeoverType
	cipActive      bool
}

// New builds a Simulator wired to its collaborators. simID identifies this
// process instance as the system actor in every emitted event.
func New(
	clk clock.Clock,
	bank *registers.Bank,
	emitter *events.Emitter,
	cat *catalogue.Catalogue,
	sched *schedule.Schedule,
	cfg config.Config,
	logger logging.LeveledLogger,
) *Simulator {
	return &Simulator{
		clock:                clk,
		bank:                 bank,
		sm:                   statemachine.New(),
		emitter:              emitter,
		cat:                  cat,
		sched:                sched,
		cfg:                  cfg,
		logger:               logger,
		simID:                uuid.NewString(),
		startedAt:            clk.Now(),
		startedOrderIDs:      make(map[string]bool),
		firedBreakdownBlocks: make(map[time.Time]bool),
	}
}

// Run drives the tick loop until ctx is cancelled, then performs a graceful
// shutdown per spec.md §5: finish the in-flight tick, emit a terminal
// StateChanged -> IDLE if an order is active, and return.
func (s *Simulator) Run(ctx context.Context) error {
	interval := s.cfg.TickInterval()

	for {
		if err := s.tick(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		default:
		}

		if err := s.clock.Sleep(ctx, interval); err != nil {
			s.shutdown()
			return nil
		}
	}
}

func (s *Simulator) shutdown() {
	if s.sm.State() != domain.StateIdle && s.activeOrder != nil {
		now := s.clock.Now()
		s.completeOrder(now, "shutdown")
		if from, to, changed := s.sm.Apply(map[domain.State]bool{domain.StateIdle: true}); changed {
			_ = s.onTransition(now, from, to)
		}
	}
}

// tick runs exactly one iteration of spec.md §4.6's seven steps.
func (s *Simulator) tick() error {
	now := s.clock.Now()

	orderBlock, otherBlock := s.sched.ActiveAt(now)

	s.maybeStartOrder(now, orderBlock)
	s.maybeFireplannedBreakdown(now, otherBlock)

	candidates := s.evaluateTriggers(now, orderBlock, otherBlock)

	if s.sm.State() == domain.StateRunning && orderBlock != nil {
		s.sampleMicrostops(now)
	}

	s.advanceCycles(now, orderBlock)

	from, to, changed := s.sm.Apply(candidates)
	if changed {
		if err := s.onTransition(now, from, to); err != nil {
			return err
		}
	}

	s.maybeCompleteOrder(now, orderBlock)

	bpm := s.computeLineSpeedBPM(now)

	s.updateRegisters(now, orderBlock, bpm)

	return nil
}

// evaluateTriggers computes, for this tick, which states are permissible
// targets (spec.md §4.5: "evaluates all active triggers each tick").
func (s *Simulator) evaluateTriggers(now time.Time, orderBlock, otherBlock *domain.ScheduledBlock) map[domain.State]bool {
	c := make(map[domain.State]bool)

	if s.faultCode != "" && now.Before(s.faultPlannedEnd) {
		c[domain.StateFault] = true
	}
	if otherBlock != nil {
		switch otherBlock.Kind {
		case domain.BlockCIP:
			c[domain.StateCIP] = true
		case domain.BlockChangeover:
			c[domain.StateChangeover] = true
			s.changeoverType = otherBlock.ChangeoverType
		case domain.BlockLunch:
			c[domain.StateStopped] = true
		case domain.BlockBreakdown:
			c[domain.StateStopped] = true
		}
	}
	if s.stopEpisode != nil && !s.stopEpisode.Closed && now.Before(s.stopEpisode.PlannedEnd) {
		if len(s.stopEpisode.StopCode) == 4 && s.stopEpisode.StopCode[:2] == "MS" {
			c[domain.StateMicrostop] = true
		} else {
			c[domain.StateStopped] = true
		}
	}
	if orderBlock != nil && s.activeOrder != nil {
		c[domain.StateRunning] = true
	}
	// IDLE is always a permissible fallback target.
	c[domain.StateIdle] = true

	return c
}

// maybeStartOrder emits OrderStarted the first time an order's schedule
// block becomes active while the line is IDLE (spec.md §4.5: "OrderStarted
// may be emitted only from IDLE").
func (s *Simulator) maybeStartOrder(now time.Time, orderBlock *domain.ScheduledBlock) {
	if orderBlock == nil || orderBlock.Order == nil {
		return
	}
	if s.startedOrderIDs[orderBlock.Order.OrderID] {
		return
	}
	if s.sm.State() != domain.StateIdle {
		return
	}

	sku, idx, ok := s.cat.Get(orderBlock.Order.SKUID)
	if !ok {
		s.logger.Errorf("order %s references unknown sku %s", orderBlock.Order.OrderID, orderBlock.Order.SKUID)
		return
	}

	s.activeOrder = orderBlock.Order
	s.activeSKU = sku
	s.activeSKUIndex = idx
	s.activeOrderIndex = s.orderSeq
	s.orderSeq++
	s.orderStartTS = now
	s.orderGoodDelta = 0
	s.orderRejectDelta = 0
	s.startedOrderIDs[orderBlock.Order.OrderID] = true

	orderID := orderBlock.Order.OrderID
	skuID := orderBlock.Order.SKUID
	base := s.emitter.NewBase("OrderStarted", now, s.cfg.Hierarchy, s.simID, &orderID, &skuID)
	_ = s.emitter.Emit(events.OrderStarted{
		Base:           base,
		PlannedQty:     orderBlock.Order.PlannedQty,
		PlannedStartTS: orderBlock.Order.PlannedStart.UTC().Format(time.RFC3339),
		PlannedEndTS:   orderBlock.Order.PlannedEnd.UTC().Format(time.RFC3339),
	})
}

// maybeCompleteOrder terminates the active order once its planned quantity
// is reached or its schedule block has ended.
func (s *Simulator) maybeCompleteOrder(now time.Time, orderBlock *domain.ScheduledBlock) {
	if s.activeOrder == nil {
		return
	}
	produced := s.orderGoodDelta + s.orderRejectDelta
	blockEnded := orderBlock == nil || orderBlock.Order == nil || orderBlock.Order.OrderID != s.activeOrder.OrderID
	if produced < s.activeOrder.PlannedQty && !blockEnded {
		return
	}
	s.completeOrder(now, "planned")
}

func (s *Simulator) completeOrder(now time.Time, _ string) {
	order := s.activeOrder
	if order == nil {
		return
	}

	durationMS := now.Sub(s.orderStartTS).Milliseconds()
	produced := s.orderGoodDelta + s.orderRejectDelta
	yield := 1.0
	if produced > 0 {
		yield = float64(s.orderGoodDelta) / float64(produced)
	}

	orderID := order.OrderID
	skuID := order.SKUID
	base := s.emitter.NewBase("OrderCompleted", now, s.cfg.Hierarchy, s.simID, &orderID, &skuID)
	_ = s.emitter.Emit(events.OrderCompleted{
		Base:             base,
		GoodCountDelta:   s.orderGoodDelta,
		RejectCountDelta: s.orderRejectDelta,
		DurationMS:       durationMS,
		Yield:            yield,
	})

	s.activeOrder = nil
}

// onTransition applies a state machine transition's side effects: opening
// or closing stop episodes, latching/clearing faults, and emitting
// StateChanged plus the paired lifecycle event (spec.md §4.5).
func (s *Simulator) onTransition(now time.Time, from, to domain.State) error {
	// Closing an episode that was open on the way out.
	if from == domain.StateMicrostop && s.stopEpisode != nil {
		s.closeMicrostop(now)
	}
	if from == domain.StateStopped && s.stopEpisode != nil {
		s.closeStop(now)
	}
	if from == domain.StateFault && to != domain.StateFault {
		s.clearFault(now)
	}
	if from == domain.StateChangeover && to != domain.StateChangeover {
		s.completeChangeover(now)
	}
	if from == domain.StateCIP && to != domain.StateCIP {
		s.completeCIP(now)
	}

	var stopCodePtr, faultCodePtr, reasonIDPtr *string
	var durationPtr *int64
	var fingerprint *microstop.Fingerprint

	if to == domain.StateMicrostop && s.stopEpisode != nil {
		sc := s.stopEpisode.StopCode
		stopCodePtr = &sc
		fingerprint = s.stopEpisode.Fingerprint
	}
	if to == domain.StateStopped && s.stopEpisode != nil {
		sc := s.stopEpisode.StopCode
		stopCodePtr = &sc
	}
	if to == domain.StateFault {
		fc := s.faultCode
		faultCodePtr = &fc
	}

	base := s.emitter.NewBase("StateChanged", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	if err := s.emitter.Emit(events.StateChanged{
		Base:        base,
		FromState:   from.String(),
		ToState:     to.String(),
		StopCode:    stopCodePtr,
		FaultCode:   faultCodePtr,
		ReasonID:    reasonIDPtr,
		DurationMS:  durationPtr,
		Fingerprint: fingerprint,
	}); err != nil {
		return err
	}

	switch to {
	case domain.StateMicrostop:
		if s.stopEpisode != nil {
			sc := s.stopEpisode.StopCode
			b2 := s.emitter.NewBase("MicrostopStarted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
			_ = s.emitter.Emit(events.MicrostopStarted{Base: b2, StopCode: sc, Fingerprint: s.stopEpisode.Fingerprint})
		}
	case domain.StateStopped:
		if s.stopEpisode != nil {
			sc := s.stopEpisode.StopCode
			b2 := s.emitter.NewBase("StopStarted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
			_ = s.emitter.Emit(events.StopStarted{Base: b2, StopCode: sc})
		}
	case domain.StateChangeover:
		ct := string(s.changeoverType)
		b2 := s.emitter.NewBase("ChangeoverStarted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
		_ = s.emitter.Emit(events.ChangeoverStarted{Base: b2, ChangeoverType: ct})
	case domain.StateCIP:
		s.cipActive = true
		b2 := s.emitter.NewBase("CIPStarted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
		_ = s.emitter.Emit(events.CIPStarted{Base: b2})
	case domain.StateFault:
		station := breakdown.Majors[s.faultCode].Station
		fc := s.faultCode
		b2 := s.emitter.NewBase("FaultRaised", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
		_ = s.emitter.Emit(events.FaultRaised{Base: b2, FaultCode: fc, Severity: "major", Station: station})
	}

	return nil
}

func (s *Simulator) orderIDPtr() *string {
	if s.activeOrder == nil {
		return nil
	}
	id := s.activeOrder.OrderID
	return &id
}

func (s *Simulator) skuIDPtr() *string {
	if s.activeOrder == nil {
		return nil
	}
	id := s.activeSKU.ID
	return &id
}

func (s *Simulator) closeMicrostop(now time.Time) {
	ep := s.stopEpisode
	ep.EndTS = now
	ep.Closed = true
	dur := ep.DurationMS()

	b2 := s.emitter.NewBase("MicrostopEnded", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	_ = s.emitter.Emit(events.MicrostopEnded{Base: b2, StopCode: ep.StopCode, Fingerprint: ep.Fingerprint, DurationMS: dur})

	if def, err := microstop.Lookup(ep.StopCode); err == nil {
		s.bank.Update(func(w *registers.Writer) {
			def.Revert(w, s.nominalBPM(), s.fillTimeMS())
		})
	}
	s.stopEpisode = nil
}

func (s *Simulator) closeStop(now time.Time) {
	ep := s.stopEpisode
	ep.EndTS = now
	ep.Closed = true
	dur := ep.DurationMS()

	b2 := s.emitter.NewBase("StopEnded", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	_ = s.emitter.Emit(events.StopEnded{Base: b2, StopCode: ep.StopCode, DurationMS: dur})
	s.stopEpisode = nil
}

func (s *Simulator) clearFault(now time.Time) {
	m, ok := breakdown.Majors[s.faultCode]
	fc := s.faultCode
	if ok {
		s.bank.Update(func(w *registers.Writer) { m.Revert(w) })
	}
	b2 := s.emitter.NewBase("FaultCleared", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	_ = s.emitter.Emit(events.FaultCleared{Base: b2, FaultCode: fc, Severity: "major", Station: m.Station})
	s.faultCode = ""
}

func (s *Simulator) completeChangeover(now time.Time) {
	ct := string(s.changeoverType)
	b2 := s.emitter.NewBase("ChangeoverCompleted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	_ = s.emitter.Emit(events.ChangeoverCompleted{Base: b2, ChangeoverType: ct})
	s.changeoverType = ""
}

func (s *Simulator) completeCIP(now time.Time) {
	dur := now.Sub(s.orderStartTS).Milliseconds() // best-effort; CIP has no order context
	b2 := s.emitter.NewBase("CIPEnded", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
	_ = s.emitter.Emit(events.CIPEnded{Base: b2, DurationMS: dur})
	s.cipActive = false
}

// maybeFireplannedBreakdown triggers a scheduled BREAKDOWN block exactly
// once, at its start timestamp (spec.md §4.6 step 3).
func (s *Simulator) maybeFireplannedBreakdown(now time.Time, otherBlock *domain.ScheduledBlock) {
	if otherBlock == nil || otherBlock.Kind != domain.BlockBreakdown {
		return
	}
	if s.firedBreakdownBlocks[otherBlock.Start] {
		return
	}
	if now.Before(otherBlock.Start) {
		return
	}
	s.firedBreakdownBlocks[otherBlock.Start] = true

	code := otherBlock.BreakdownCode
	if m, ok := breakdown.Majors[code]; ok {
		s.latchFault(now, m)
		return
	}
	// minor breakdown: open a STOPPED episode under the schedule's own code
	// (falling back to a generic one if the block left it blank).
	if code == "" {
		code = "ST01"
	}
	s.openStopEpisode(now, code, breakdown.DrawMinorDuration())
}

func (s *Simulator) latchFault(now time.Time, m breakdown.Major) {
	if s.stopEpisode != nil && !s.stopEpisode.Closed {
		// FAULT overrides any in-progress microstop/stop: close the
		// subordinate episode with its current duration (spec.md §4.5).
		if s.sm.State() == domain.StateMicrostop {
			s.closeMicrostop(now)
		} else {
			s.closeStop(now)
		}
	}
	s.faultCode = m.Code
	s.faultPlannedEnd = now.Add(breakdown.DrawMajorDuration(m))
	s.bank.Update(func(w *registers.Writer) { m.Apply(w) })
}

func (s *Simulator) openStopEpisode(now time.Time, code string, duration time.Duration) {
	s.stopEpisode = &domain.StopEpisode{StopCode: code, StartTS: now, PlannedEnd: now.Add(duration)}
}

// sampleMicrostops rolls a per-kind Bernoulli draw and opens a microstop
// episode on the first hit this tick (spec.md §4.6 step 3).
func (s *Simulator) sampleMicrostops(now time.Time) {
	if s.stopEpisode != nil {
		return // a stop/microstop is already open
	}
	for _, code := range microstop.Codes {
		rate := s.cfg.Microstop.Rates[code]
		if rate <= 0 {
			continue
		}
		if !bernoulli(rate) {
			continue
		}
		def := microstop.Defs[code]
		fp := def.Fingerprint(s.nominalBPM(), s.fillTimeMS())
		s.stopEpisode = &domain.StopEpisode{
			StopCode:    code,
			StartTS:     now,
			PlannedEnd:  now.Add(microstop.DrawDuration(def)),
			Fingerprint: &fp,
		}
		s.bank.Update(func(w *registers.Writer) {
			def.Apply(w, s.nominalBPM(), s.fillTimeMS())
		})
		return
	}

	if bernoulli(s.cfg.Breakdowns.MinorRatePerTick) {
		s.openStopEpisode(now, "ST01", breakdown.DrawMinorDuration())
	}
}

// advanceCycles applies the per-station cycle logic of spec.md §4.6 step 4
// and advances bottle completion accounting while RUNNING.
func (s *Simulator) advanceCycles(now time.Time, orderBlock *domain.ScheduledBlock) {
	if orderBlock == nil || s.activeOrder == nil {
		return
	}
	if s.sm.State() != domain.StateRunning {
		return
	}

	interval := time.Duration(float64(time.Minute) / s.nominalBPM())
	s.sinceLastBottle += s.cfg.TickInterval()
	if s.sinceLastBottle < interval {
		return
	}
	s.sinceLastBottle -= interval

	s.completeBottle(now)
}

func (s *Simulator) completeBottle(now time.Time) {
	rejectRate := s.activeSKU.RejectRate
	if rejectRate <= 0 {
		rejectRate = 0.005
	}

	isReject := bernoulli(rejectRate)

	var reason domain.RejectReason
	var weight, torque float64

	if isReject {
		reason = drawRejectReason()
		s.orderRejectDelta++
		s.counters.RejectCount++
		s.lastRejectReason = reason
	} else {
		s.orderGoodDelta++
		s.counters.GoodCount++
	}

	weight = s.activeSKU.FillTargetG * (1 + gaussianPct(0.005))
	torque = s.activeSKU.TorqueTargetNm * (1 + gaussianPct(0.01))
	s.lastWeight = weight
	s.lastTorque = torque
	s.lastFillTimeMS = s.fillTimeMS()

	s.lastBottleTimes = append(s.lastBottleTimes, now)

	sample := false
	if isReject {
		sample = true
	} else {
		sample = events.Sample(0.02)
	}

	if sample {
		result := "GOOD"
		var reasonPtr *string
		if isReject {
			result = "REJECT"
			r := string(reason)
			reasonPtr = &r
		}
		b2 := s.emitter.NewBase("BottleCompleted", now, s.cfg.Hierarchy, s.simID, s.orderIDPtr(), s.skuIDPtr())
		_ = s.emitter.Emit(events.BottleCompleted{
			Base:         b2,
			Result:       result,
			Station:      string(domain.StationCheckweigher),
			RejectReason: reasonPtr,
			Weight:       &weight,
			Torque:       &torque,
		})
	}
}

func (s *Simulator) nominalBPM() float64 {
	if s.activeSKU.NominalBPM > 0 {
		return s.activeSKU.NominalBPM
	}
	// spec.md §4.6: 60 for 500mL, 20 for 2L; interpolate linearly for
	// other volumes as a reasonable default when a SKU omits nominal_bpm.
	if s.activeSKU.VolumeML <= 0 {
		return 60
	}
	bpm := 60 - (s.activeSKU.VolumeML-500)*(40.0/1500.0)
	if bpm < 10 {
		bpm = 10
	}
	return bpm
}

func (s *Simulator) fillTimeMS() float64 {
	if s.activeSKU.VolumeML <= 0 {
		return 0
	}
	return (s.activeSKU.VolumeML / 120) * 1000
}

func (s *Simulator) computeLineSpeedBPM(now time.Time) float64 {
	if s.sm.State() != domain.StateRunning {
		s.lastBottleTimes = nil
		return 0
	}
	cutoff := now.Add(-time.Second)
	kept := s.lastBottleTimes[:0]
	for _, t := range s.lastBottleTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.lastBottleTimes = kept
	return float64(len(kept)) * 60
}

func (s *Simulator) updateRegisters(now time.Time, orderBlock *domain.ScheduledBlock, bpm float64) {
	orderIdx := registers.IdleIndex
	skuIdx := registers.IdleIndex
	hazard := false
	if s.activeOrder != nil {
		orderIdx = uint16(s.activeOrderIndex)
		skuIdx = uint16(s.activeSKUIndex)
		hazard = s.activeSKU.HazardRequired
	}

	stopCode := ""
	if s.stopEpisode != nil {
		stopCode = s.stopEpisode.StopCode
	}

	changeoverCode := registers.ChangeoverCode(string(s.changeoverType))

	s.bank.Update(func(w *registers.Writer) {
		w.SetUint16(registers.AddrLineState, s.sm.State().RegisterCode())
		w.SetUint16(registers.AddrStopCode, registers.StopCode(stopCode))
		w.SetUint16(registers.AddrFaultCode, registers.FaultCode(s.faultCode))
		w.SetUint16(registers.AddrOrderIndex, orderIdx)
		w.SetUint16(registers.AddrSKUIndex, skuIdx)
		w.SetUint32(registers.AddrGoodCountHi, s.counters.GoodCount)
		w.SetUint32(registers.AddrRejectCountHi, s.counters.RejectCount)
		w.SetUint16(registers.AddrRejectReason, domain.RejectReasonCode(s.lastRejectReason))
		w.SetFloat32(registers.AddrLineSpeedBPM, float32(bpm))
		w.SetFloat32(registers.AddrFillTimeMS, float32(s.lastFillTimeMS))
		w.SetFloat32(registers.AddrActualWeightG, float32(s.lastWeight))
		w.SetFloat32(registers.AddrTorqueActual, float32(s.lastTorque))
		w.SetBool(registers.AddrHazardFlag, hazard)
		w.SetBool(registers.AddrCIPActive, s.cipActive)
		w.SetUint16(registers.AddrChangeoverKnd, changeoverCode)
		w.SetUint16(registers.AddrSimSpeedX10, s.speedX10())
		w.SetUint32(registers.AddrUptimeS, uint32(now.Sub(s.startedAt).Seconds()))
		w.SetUint16(registers.AddrBuildMarker, 1)
	})
}

func (s *Simulator) speedX10() uint16 {
	if vc, ok := s.clock.(interface{ SpeedX10() uint16 }); ok {
		return vc.SpeedX10()
	}
	return uint16(s.cfg.SpeedFactor * 10)
}

// bernoulli rolls a single trial with success probability p using
// crypto/rand, matching the per-tick sampling style of spec.md §4.6.
func bernoulli(p float64) bool {
	return events.Sample(p)
}

func drawRejectReason() domain.RejectReason {
	reasons := []domain.RejectReason{
		domain.RejectWeight, domain.RejectTorque, domain.RejectBarcode,
		domain.RejectLabel, domain.RejectHazard,
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(reasons))))
	if err != nil {
		return domain.RejectWeight
	}
	return reasons[n.Int64()]
}

// gaussianPct approximates a zero-mean Gaussian percentage via the
// Box-Muller transform, scaled so roughly 99% of draws fall within
// +/-3*sigma, matching the "actual = target +/- sigma%" style of spec.md
// §4.6.
func gaussianPct(sigma float64) float64 {
	u1 := randFloat01()
	u2 := randFloat01()
	if u1 <= 0 {
		u1 = 1e-9
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return z * sigma
}

func randFloat01() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / 1_000_000
}
