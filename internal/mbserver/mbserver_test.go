package mbserver

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/mbclient"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
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

func startTestServer(t *testing.T, bank *registers.Bank) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(bank, nopLogger{}, time.Second, 4)
	require.NoError(t, srv.Start(l))
	t.Cleanup(func() { srv.Stop() })

	return l.Addr().String()
}

func TestReadHoldingRegistersReturnsBankContents(t *testing.T) {
	bank := registers.New()
	bank.Update(func(w *registers.Writer) {
		w.SetUint16(registers.AddrLineState, 1)
		w.SetUint32(registers.AddrGoodCountHi, 42)
	})

	addr := startTestServer(t, bank)
	c, err := mbclient.Dial(addr, time.Second)
	require.NoError(t, err)
	defer c.Close()

	words, err := c.ReadHoldingRegisters(0, uint16(registers.BankSize))
	require.NoError(t, err)
	require.Len(t, words, registers.BankSize)
	require.Equal(t, uint16(1), words[registers.AddrLineState])

	good, err := c.ReadUint32(registers.AddrGoodCountHi)
	require.NoError(t, err)
	require.Equal(t, uint32(42), good)
}

func TestReadInputRegistersAliasesHoldingRegisters(t *testing.T) {
	bank := registers.New()
	bank.Update(func(w *registers.Writer) { w.SetUint16(registers.AddrFaultCode, 2) })

	addr := startTestServer(t, bank)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := mbapRequest(1, 0x04, registers.AddrFaultCode, 1)
	_, err = conn.Write(req)
	require.NoError(t, err)

	resp := make([]byte, 64)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 11)
	require.Equal(t, uint8(0x04), resp[7])
	value := binary.BigEndian.Uint16(resp[9:11])
	require.Equal(t, uint16(2), value)
}

func TestUnsupportedFunctionCodeYieldsIllegalFunctionException(t *testing.T) {
	bank := registers.New()
	addr := startTestServer(t, bank)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := mbapRequest(1, 0x06, 0, 1) // write single register: unsupported
	_, err = conn.Write(req)
	require.NoError(t, err)

	resp := make([]byte, 64)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 9)
	require.Equal(t, uint8(0x80|0x06), resp[7])
	require.Equal(t, exIllegalFunction, resp[8])
}

func TestOutOfRangeAddressYieldsIllegalDataAddress(t *testing.T) {
	bank := registers.New()
	addr := startTestServer(t, bank)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := mbapRequest(1, 0x03, registers.BankSize-1, 10)
	_, err = conn.Write(req)
	require.NoError(t, err)

	resp := make([]byte, 64)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 9)
	require.Equal(t, uint8(0x80|0x03), resp[7])
	require.Equal(t, exIllegalDataAddress, resp[8])
}

func mbapRequest(txnID uint16, functionCode uint8, addr, quantity int) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], uint16(addr))
	binary.BigEndian.PutUint16(payload[2:4], uint16(quantity))
	return assembleMBAPFrame(txnID, &pdu{unitID: 1, functionCode: functionCode, payload: payload})
}
