package scheduler

import (
	"sort"
	"sync"

	"github.com/blobworks/transfer/internal/planner"
)

// PartStatus is the lifecycle state of one part job.
type PartStatus int

const (
	// PartPending means the part has not been dispatched yet
	PartPending PartStatus = iota
	// PartInFlight means an attempt is currently running
	PartInFlight
	// PartRetrying means the last attempt failed and a retry is waiting out
	// its backoff delay
	PartRetrying
	// PartSucceeded means the part transferred successfully
	PartSucceeded
	// PartFailed means the part failed terminally
	PartFailed
)

// state tracks one in-flight transfer. It is mutated only under its mutex:
// concurrent part-completion callbacks serialize on state updates.
type state struct {
	mu        sync.Mutex
	status    map[int32]PartStatus
	completed map[int32]PartResult
}

func newState(parts []planner.PartSpec) *state {
	st := &state{
		status:    make(map[int32]PartStatus, len(parts)),
		completed: make(map[int32]PartResult, len(parts)),
	}
	for _, p := range parts {
		st.status[p.PartNumber] = PartPending
	}
	return st
}

func (st *state) transition(partNumber int32, to PartStatus) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.status[partNumber] = to
}

func (st *state) complete(partNumber int32, res PartResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.status[partNumber] = PartSucceeded
	st.completed[partNumber] = res
}

func (st *state) fail(partNumber int32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.status[partNumber] = PartFailed
}

// inFlight returns the number of parts currently running or retrying.
func (st *state) inFlight() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, s := range st.status {
		if s == PartInFlight || s == PartRetrying {
			n++
		}
	}
	return n
}

// ordered returns the completed results in ascending part-number order.
func (st *state) ordered() []PartResult {
	st.mu.Lock()
	defer st.mu.Unlock()
	results := make([]PartResult, 0, len(st.completed))
	for _, res := range st.completed {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PartNumber < results[j].PartNumber
	})
	return results
}
