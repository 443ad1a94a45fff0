package adbfs

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/data/errors"
	"github.com/mwantia/adbfs/metrics"
)

// OperationInfo describes an operation that has not completed yet.
type OperationInfo struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Path      string    `json:"path"`
	Phase     string    `json:"phase"`
	Started   time.Time `json:"started"`
}

// operation carries the outcome of a single bridge call.
// Every operation is finished exactly once; a second finish panics.
type operation struct {
	fs *FileSystem

	id      uuid.UUID
	name    string
	path    string
	started time.Time

	mu    sync.Mutex
	phase string

	settled atomic.Bool
}

type inflight struct {
	mu  sync.Mutex
	ops map[uuid.UUID]*operation
}

func (fs *FileSystem) begin(name, path string) *operation {
	op := &operation{
		fs:      fs,
		id:      uuid.New(),
		name:    name,
		path:    path,
		started: time.Now(),
		phase:   "resolve",
	}

	fs.inflight.mu.Lock()
	fs.inflight.ops[op.id] = op
	fs.inflight.mu.Unlock()

	metrics.IncInFlight()
	fs.logger.Debug("%s uri %s", name, path)

	return op
}

// step records the phase the operation entered.
func (op *operation) step(phase string) {
	op.mu.Lock()
	op.phase = phase
	op.mu.Unlock()
}

func (op *operation) trace(vp data.VirtualPath) {
	op.fs.logger.Debug("%s uri %s deviceId %s path %s", op.name, op.path, vp.DeviceID, vp.RemotePath)
}

func (op *operation) finish(err error) error {
	if !op.settled.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("adbfs: operation %s '%s' (%s) settled twice", op.name, op.path, op.id))
	}

	op.fs.inflight.mu.Lock()
	delete(op.fs.inflight.ops, op.id)
	op.fs.inflight.mu.Unlock()

	duration := time.Since(op.started)
	metrics.DecInFlight()
	metrics.RecordOperation(op.name, duration, err)

	switch {
	case err == nil:
		op.fs.logger.Debug("%s uri %s completed in %s", op.name, op.path, duration)
	case errors.Is(err, data.ErrTransport):
		op.fs.logger.Error("%s uri %s failed: %v", op.name, op.path, err)
	default:
		op.fs.logger.Debug("%s uri %s rejected: %v", op.name, op.path, err)
	}

	return err
}

// InFlight returns the operations currently waiting on remote I/O or settling,
// oldest first.
func (fs *FileSystem) InFlight() []OperationInfo {
	fs.inflight.mu.Lock()
	infos := make([]OperationInfo, 0, len(fs.inflight.ops))
	for _, op := range fs.inflight.ops {
		op.mu.Lock()
		infos = append(infos, OperationInfo{
			ID:        op.id.String(),
			Operation: op.name,
			Path:      op.path,
			Phase:     op.phase,
			Started:   op.started,
		})
		op.mu.Unlock()
	}
	fs.inflight.mu.Unlock()

	slices.SortFunc(infos, func(a, b OperationInfo) int {
		return a.Started.Compare(b.Started)
	})

	return infos
}
