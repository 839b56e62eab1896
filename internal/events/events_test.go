package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string)                       {}
func (nopLogger) Infof(string, ...interface{})      {}
func (nopLogger) Warning(string)                    {}
func (nopLogger) Warningf(string, ...interface{})   {}
func (nopLogger) Error(string)                      {}
func (nopLogger) Errorf(string, ...interface{})     {}
func (nopLogger) Fatal(string)                      {}
func (nopLogger) Fatalf(string, ...interface{})     {}

func TestEmitAppendsNewlineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	e, err := Open(path, 8, nopLogger{})
	require.NoError(t, err)

	hierarchy := domain.HierarchyIDs{Enterprise: "e", Site: "s", Area: "a", Line: "l"}
	now := time.Now()
	base := e.NewBase("StateChanged", now, hierarchy, "sim-1", nil, nil)
	require.NoError(t, e.Emit(StateChanged{Base: base, FromState: "IDLE", ToState: "RUNNING"}))
	require.NoError(t, e.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var decoded StateChanged
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
	require.Equal(t, "StateChanged", decoded.EventType)
	require.Equal(t, "IDLE", decoded.FromState)
	require.Equal(t, "RUNNING", decoded.ToState)
	require.False(t, scanner.Scan(), "exactly one line expected")
}

func TestNewULIDIsMonotonicWithinSameTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	e, err := Open(path, 8, nopLogger{})
	require.NoError(t, err)
	defer e.Close()

	now := time.Now()
	a := e.NewULID(now)
	b := e.NewULID(now)
	require.Less(t, a, b, "ULIDs minted at the same timestamp must sort monotonically")
}

func TestCloseDrainsQueueBeforeClosingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	e, err := Open(path, 64, nopLogger{})
	require.NoError(t, err)

	hierarchy := domain.HierarchyIDs{}
	now := time.Now()
	for i := 0; i < 20; i++ {
		base := e.NewBase("CIPStarted", now, hierarchy, "sim-1", nil, nil)
		require.NoError(t, e.Emit(CIPStarted{Base: base}))
	}
	require.NoError(t, e.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines++
	}
	require.Equal(t, 20, lines)
}

func TestEmitAfterCloseReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	e, err := Open(path, 8, nopLogger{})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	base := e.NewBase("CIPStarted", time.Now(), domain.HierarchyIDs{}, "sim-1", nil, nil)
	require.Error(t, e.Emit(CIPStarted{Base: base}))
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	e, err := Open(path, 8, nopLogger{})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NotPanics(t, func() {
		require.NoError(t, e.Close())
	})
}

func TestSampleBounds(t *testing.T) {
	require.False(t, Sample(0))
	require.True(t, Sample(1))
}
