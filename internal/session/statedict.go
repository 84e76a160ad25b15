package session

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jbuehl/semonitor/internal/logging"
)

// stateEntry pairs a debug value with the time it was set, per
// se/logutils.py's setState ([time.time(), value] tuple).
type stateEntry struct {
	at    time.Time
	value any
}

// StateDict is the mutex-guarded debug-state map a SIGINT handler dumps
// alongside every goroutine's stack, per se/logutils.py's
// setState/dumpState.
type StateDict struct {
	mu    sync.Mutex
	state map[string]stateEntry
}

// NewStateDict returns an empty StateDict.
func NewStateDict() *StateDict {
	return &StateDict{state: make(map[string]stateEntry)}
}

// Set records item's current value and timestamp.
func (d *StateDict) Set(item string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[item] = stateEntry{at: time.Now(), value: value}
}

// Dump logs every state entry plus every goroutine's stack trace,
// mirroring se/logutils.py.dumpState's thread-stack dump.
func (d *StateDict) Dump(log *logging.Logger) {
	d.mu.Lock()
	snapshot := make(map[string]stateEntry, len(d.state))
	for k, v := range d.state {
		snapshot[k] = v
	}
	d.mu.Unlock()

	log.Info("state:")
	for item, entry := range snapshot {
		log.Info(fmt.Sprintf("      %s %s: %v", entry.at.Format("15:04:05"), item, entry.value))
	}

	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	log.Info(string(buf[:n]))
}
