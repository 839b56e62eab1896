package registers

// Layout constants document the bit-exact holding register map required by
// spec.md §4.2/§6. These are the single source of truth for both the
// simulator's writes (internal/simulator) and any test-side decoding; the
// README register table must match this file exactly.
const (
	AddrLineState     = 0  // uint16, §6 line_state enum (0-6)
	AddrStopCode      = 1  // uint16, §6 stop_code enum
	AddrFaultCode     = 2  // uint16, §6 fault_code enum
	AddrOrderIndex    = 3  // uint16, 0-based, 0xFFFF = IDLE
	AddrSKUIndex      = 4  // uint16, 0-based, 0xFFFF = IDLE
	AddrGoodCountHi   = 5  // uint32 (2 regs), good_count
	AddrRejectCountHi = 7  // uint32 (2 regs), reject_count
	AddrRejectReason  = 9  // uint16, last reject's reason code
	AddrLineSpeedBPM  = 10 // float32 (2 regs), line_speed_bpm
	AddrFillTimeMS    = 12 // float32 (2 regs), fill_time_ms of last fill cycle
	AddrActualWeightG = 14 // float32 (2 regs), actual_weight_g of last fill
	AddrScaleStable   = 16 // bool, scale_stable
	AddrTorqueActual  = 17 // float32 (2 regs), torque_actual
	AddrTorqueInSpec  = 19 // bool, torque_in_spec
	AddrBottlePresent = 20 // bool, bottle_presence
	AddrInfeedRateBPM = 21 // float32 (2 regs), infeed_rate_bpm
	AddrDripSensor    = 23 // bool, drip_sensor
	AddrCapFeedOK     = 24 // bool, cap_feed_ok
	AddrRezeroActive  = 25 // bool, rezero_active
	AddrLabelSensorOK = 26 // bool, label_sensor_ok
	AddrBarcodeOK     = 27 // bool, barcode_read_ok
	AddrRescanCount   = 28 // uint16, rescan_count
	AddrPusherCycleMS = 29 // float32 (2 regs), pusher_cycle_ms
	AddrOutfeedFull   = 31 // bool, outfeed_full
	AddrLineSpeedDip  = 32 // uint16, line_speed_dip_pct (0-100)
	AddrCIPActive     = 33 // bool, CIP in progress
	AddrChangeoverKnd = 34 // uint16, changeover type (0=none,1=LABEL,2=SIZE,3=LIQUID)
	AddrHazardFlag    = 35 // bool, current SKU requires hazard handling

	// Reserved gap 36-49 for future telemetry, left at zero.

	AddrSimSpeedX10 = 50 // uint16, speed_factor*10 (§6)
	AddrUptimeS     = 51 // uint32 (2 regs), virtual seconds since simulator start
	AddrBuildMarker = 53 // uint16, static build/version marker
	// 54-55 reserved, left at zero.
)

// ChangeoverCode returns the changeover-type register encoding used at
// AddrChangeoverKnd.
func ChangeoverCode(kind string) uint16 {
	switch kind {
	case "LABEL":
		return 1
	case "SIZE":
		return 2
	case "LIQUID":
		return 3
	default:
		return 0
	}
}

// IdleIndex is the sentinel written to AddrOrderIndex/AddrSKUIndex while the
// line is IDLE, per spec.md §6.
const IdleIndex uint16 = 0xFFFF

// FaultCode maps a breakdown code to the fault_code register encoding (§6).
func FaultCode(breakdownCode string) uint16 {
	switch breakdownCode {
	case "BD-M1":
		return 1
	case "BD-M2":
		return 2
	case "BD-M3":
		return 3
	default:
		return 0
	}
}

// StopCode maps a stop/microstop/breakdown code string to the stop_code
// register encoding documented in spec.md §6:
// 0=none, 1-10=MS01-MS10, 11-20=ST01-ST10, 21=BD-M1, 22=BD-M2, 23=BD-M3.
func StopCode(code string) uint16 {
	switch code {
	case "":
		return 0
	case "BD-M1":
		return 21
	case "BD-M2":
		return 22
	case "BD-M3":
		return 23
	}
	if len(code) == 4 && code[:2] == "MS" {
		return microstopIndex(code) // 1-10
	}
	if len(code) == 4 && code[:2] == "ST" {
		return 10 + microstopIndex(code) // 11-20
	}
	return 0
}

func microstopIndex(code string) uint16 {
	// code is "MSxx" or "STxx"; xx is a zero-padded 1-based index.
	tens := code[2] - '0'
	ones := code[3] - '0'
	return uint16(tens)*10 + uint16(ones)
}
