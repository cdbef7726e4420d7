package serial

import (
	"go.uber.org/atomic"
)

// Stats counts the operations performed by a binding. All fields are safe
// for concurrent use.
type Stats struct {
	Opens        atomic.Int64 // successful opens
	Closes       atomic.Int64 // successful closes
	ReadOps      atomic.Int64 // reads that resolved with data
	WriteOps     atomic.Int64 // writes that resolved
	BytesRead    atomic.Int64
	BytesWritten atomic.Int64
	Failures     atomic.Int64 // rejected operations of any kind
	Disconnects  atomic.Int64 // disconnect callbacks delivered
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Opens        int64
	Closes       int64
	ReadOps      int64
	WriteOps     int64
	BytesRead    int64
	BytesWritten int64
	Failures     int64
	Disconnects  int64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Opens:        s.Opens.Load(),
		Closes:       s.Closes.Load(),
		ReadOps:      s.ReadOps.Load(),
		WriteOps:     s.WriteOps.Load(),
		BytesRead:    s.BytesRead.Load(),
		BytesWritten: s.BytesWritten.Load(),
		Failures:     s.Failures.Load(),
		Disconnects:  s.Disconnects.Load(),
	}
}

// RecordRead counts a read that delivered n bytes.
func (s *Stats) RecordRead(n int) {
	s.ReadOps.Inc()
	s.BytesRead.Add(int64(n))
}

// RecordWrite counts a write of n bytes.
func (s *Stats) RecordWrite(n int) {
	s.WriteOps.Inc()
	s.BytesWritten.Add(int64(n))
}
