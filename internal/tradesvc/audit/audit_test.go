package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Event
		require.NoError(t, json.Unmarshal([]byte(line), &e), "every audit line must be valid JSON")
		events = append(events, e)
	}
	return events
}

func TestLogger_AppendsOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Log(EventCreation, "t1", "alice", "bob", "offering c1")
	l.Log(EventCompletion, "t1", "alice", "bob", "")

	events := readEvents(t, dir)
	require.Len(t, events, 2)
	assert.Equal(t, EventCreation, events[0].EventType)
	assert.Equal(t, EventCompletion, events[1].EventType)
	assert.Equal(t, "t1", events[0].TradeID)
}

func TestLogger_ConcurrentWritersNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log(EventTransfer, "t1", "alice", "bob", strings.Repeat("x", 256))
		}()
	}
	wg.Wait()

	// Every line parses, so no two writes interleaved.
	events := readEvents(t, dir)
	assert.Len(t, events, writers)
}
