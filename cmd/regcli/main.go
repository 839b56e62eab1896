// Command regcli is a human-inspection tool for a running bottling-sim
// instance: it dials its Modbus TCP server and decodes the documented
// register table. It is explicitly out of the simulator's core scope
// (spec.md §1) — a convenience wrapper around internal/mbclient, adapted
// from simonvetter-modbus/cmd/modbus-cli.go's dial-and-dump shape.
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/mbclient"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
)

func main() {
	var target string
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "regcli",
		Short: "Dumps a running bottling-sim instance's Modbus register table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(target, timeout)
		},
	}
	root.Flags().StringVar(&target, "target", "localhost:502", "host:port of the simulator's Modbus TCP server")
	root.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "regcli:", err)
		os.Exit(1)
	}
}

func dump(target string, timeout time.Duration) error {
	c, err := mbclient.Dial(target, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	words, err := c.ReadHoldingRegisters(0, uint16(registers.BankSize))
	if err != nil {
		return fmt.Errorf("reading registers: %w", err)
	}

	lineState := words[registers.AddrLineState]
	stopCode := words[registers.AddrStopCode]
	faultCode := words[registers.AddrFaultCode]
	orderIdx := words[registers.AddrOrderIndex]
	skuIdx := words[registers.AddrSKUIndex]
	goodCount := pack32(words[registers.AddrGoodCountHi], words[registers.AddrGoodCountHi+1])
	rejectCount := pack32(words[registers.AddrRejectCountHi], words[registers.AddrRejectCountHi+1])
	lineSpeed := packFloat32(words[registers.AddrLineSpeedBPM], words[registers.AddrLineSpeedBPM+1])
	simSpeedX10 := words[registers.AddrSimSpeedX10]
	uptime := pack32(words[registers.AddrUptimeS], words[registers.AddrUptimeS+1])

	fmt.Printf("line_state:    %d\n", lineState)
	fmt.Printf("stop_code:     %d\n", stopCode)
	fmt.Printf("fault_code:    %d\n", faultCode)
	fmt.Printf("order_index:   %s\n", formatIndex(orderIdx))
	fmt.Printf("sku_index:     %s\n", formatIndex(skuIdx))
	fmt.Printf("good_count:    %d\n", goodCount)
	fmt.Printf("reject_count:  %d\n", rejectCount)
	fmt.Printf("line_speed_bpm:%.1f\n", lineSpeed)
	fmt.Printf("sim_speed_x10: %d\n", simSpeedX10)
	fmt.Printf("uptime_s:      %d\n", uptime)

	return nil
}

func formatIndex(v uint16) string {
	if v == registers.IdleIndex {
		return "IDLE"
	}
	return fmt.Sprintf("%d", v)
}

func pack32(hi, lo uint16) uint32 {
	return (uint32(hi) << 16) | uint32(lo)
}

func packFloat32(hi, lo uint16) float32 {
	return math.Float32frombits(pack32(hi, lo))
}
