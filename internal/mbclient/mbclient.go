// Package mbclient is a minimal Modbus TCP client: dial, Read Holding
// Registers, close. It exists for cmd/regcli to inspect a running
// simulator's register bank; it is explicitly out of the simulator's own
// runtime (spec.md §1, external interfaces only).
//
// Trimmed from simonvetter-modbus/client.go, which also supports RTU
// (go.bug.st/serial), TLS, UDP, and register writes; none of those are
// needed by a read-only inspection CLI, so this package drops them rather
// than carry unused transport modes (see DESIGN.md for the dropped-RTU/TLS
// justification).
package mbclient

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"time"
)

const mbapHeaderLength = 7

// Client is a single-connection Modbus TCP client.
type Client struct {
	conn      net.Conn
	timeout   time.Duration
	unitID    uint8
	lastTxnID uint16
}

// Dial connects to a Modbus TCP server at addr (host:port).
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{conn: conn, timeout: timeout, unitID: 1}, nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadHoldingRegisters reads quantity registers starting at addr (FC3).
func (c *Client) ReadHoldingRegisters(addr, quantity uint16) ([]uint16, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], quantity)

	res, err := c.execute(0x03, payload)
	if err != nil {
		return nil, err
	}
	if len(res) < 1 || int(res[0]) != len(res)-1 {
		return nil, fmt.Errorf("malformed read holding registers response")
	}

	regs := make([]uint16, quantity)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(res[1+2*i : 3+2*i])
	}
	return regs, nil
}

// ReadUint32 reads a big-endian, high-word-first 32-bit value at addr.
func (c *Client) ReadUint32(addr uint16) (uint32, error) {
	regs, err := c.ReadHoldingRegisters(addr, 2)
	if err != nil {
		return 0, err
	}
	return (uint32(regs[0]) << 16) | uint32(regs[1]), nil
}

// ReadFloat32 reads a big-endian, high-word-first IEEE-754 float32 at addr.
func (c *Client) ReadFloat32(addr uint16) (float32, error) {
	bits, err := c.ReadUint32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (c *Client) execute(functionCode uint8, payload []byte) ([]byte, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	c.lastTxnID++
	frame := assembleMBAPFrame(c.lastTxnID, c.unitID, functionCode, payload)
	if _, err := c.conn.Write(frame); err != nil {
		return nil, err
	}

	header := make([]byte, mbapHeaderLength)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, err
	}
	bytesNeeded := int(binary.BigEndian.Uint16(header[4:6])) - 1
	if bytesNeeded <= 0 {
		return nil, fmt.Errorf("malformed response header")
	}

	body := make([]byte, bytesNeeded)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, err
	}

	respFC := body[0]
	if respFC&0x80 != 0 {
		if len(body) < 2 {
			return nil, fmt.Errorf("malformed exception response")
		}
		return nil, fmt.Errorf("modbus exception code %d for function %#x", body[1], respFC&0x7f)
	}
	if respFC != functionCode {
		return nil, fmt.Errorf("unexpected function code %#x in response", respFC)
	}

	return body[1:], nil
}

func assembleMBAPFrame(txnID uint16, unitID, functionCode uint8, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload))
	out = append(out, byte(txnID>>8), byte(txnID))
	out = append(out, 0x00, 0x00)
	length := uint16(2 + len(payload))
	out = append(out, byte(length>>8), byte(length))
	out = append(out, unitID, functionCode)
	out = append(out, payload...)
	return out
}
