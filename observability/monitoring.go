package observability

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// StatsSnapshot aggregates the session counters for the UI.
type StatsSnapshot struct {
	MessagesSent       uint64 `json:"messages_sent"`
	SnapshotsDelivered uint64 `json:"snapshots_delivered"`
	PatchesApplied     uint64 `json:"patches_applied"`
	SyncFailures       uint64 `json:"sync_failures"`
	StartedAt          string `json:"started_at"`
}

// SessionStats tracks what a conversation session does, lock-free.
type SessionStats struct {
	log *slog.Logger

	messagesSent       atomic.Uint64
	snapshotsDelivered atomic.Uint64
	patchesApplied     atomic.Uint64
	syncFailures       atomic.Uint64
	startedAt          time.Time
}

func NewSessionStats(log *slog.Logger) *SessionStats {
	return &SessionStats{
		log:       log,
		startedAt: time.Now(),
	}
}

func (s *SessionStats) IncrMessagesSent() {
	s.messagesSent.Add(1)
}

func (s *SessionStats) IncrSnapshotsDelivered() {
	s.snapshotsDelivered.Add(1)
}

func (s *SessionStats) IncrPatchesApplied(n uint64) {
	s.patchesApplied.Add(n)
}

func (s *SessionStats) IncrSyncFailures() {
	s.syncFailures.Add(1)
}

func (s *SessionStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		MessagesSent:       s.messagesSent.Load(),
		SnapshotsDelivered: s.snapshotsDelivered.Load(),
		PatchesApplied:     s.patchesApplied.Load(),
		SyncFailures:       s.syncFailures.Load(),
		StartedAt:          s.startedAt.Format(time.RFC3339),
	}
}

// LogSummary writes the counters out, typically at shutdown.
func (s *SessionStats) LogSummary() {
	snap := s.Snapshot()
	s.log.Info("Session summary",
		"messages_sent", snap.MessagesSent,
		"snapshots_delivered", snap.SnapshotsDelivered,
		"patches_applied", snap.PatchesApplied,
		"sync_failures", snap.SyncFailures,
	)
}
