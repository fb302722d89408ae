package corpusstorage

import (
	"sync"

	"github.com/google/uuid"
)

// JobStatus is a background job's coarse lifecycle state (spec §5:
// "process-wide job table (opaque handle -> state) shared across worker
// threads").
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobFinished  JobStatus = "finished"
	JobFailed    JobStatus = "failed"
)

// JobHandle is the opaque identifier returned to a caller that starts a
// background job (e.g. a bulk import), used later to poll JobTable.Status.
type JobHandle string

type jobRecord struct {
	Status  JobStatus
	Message string
}

// JobTable is the process-wide table of background jobs spec §5
// describes, keyed by an opaque uuid handle so callers cannot forge or
// guess another job's id.
//
// Grounded on application/sagas/create_node_saga.go's compensation/status
// bookkeeping (teacher), generalized from "one saga's steps" to "any
// named background job this process is running", with
// github.com/google/uuid (teacher direct dep) minting handles.
type JobTable struct {
	mu   sync.RWMutex
	jobs map[JobHandle]*jobRecord
}

func NewJobTable() *JobTable {
	return &JobTable{jobs: make(map[JobHandle]*jobRecord)}
}

// Start registers a new job in the running state and returns its handle.
func (t *JobTable) Start() JobHandle {
	h := JobHandle(uuid.NewString())
	t.mu.Lock()
	t.jobs[h] = &jobRecord{Status: JobRunning}
	t.mu.Unlock()
	return h
}

// Finish marks h as finished.
func (t *JobTable) Finish(h JobHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.jobs[h]; ok {
		r.Status = JobFinished
	}
}

// Fail marks h as failed with a message.
func (t *JobTable) Fail(h JobHandle, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.jobs[h]; ok {
		r.Status = JobFailed
		r.Message = message
	}
}

// Status returns h's current status, or ("", false) if h is unknown
// (never registered, or evicted by a future GC pass this table does not
// yet implement).
func (t *JobTable) Status(h JobHandle) (JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.jobs[h]
	if !ok {
		return "", false
	}
	return r.Status, true
}
