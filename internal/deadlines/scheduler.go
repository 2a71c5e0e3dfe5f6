// Package deadlines persists one reminder schedule per grant and works out
// which reminders have come due.
package deadlines

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/metrics"
	"github.com/david/grant-assistant/internal/models"
)

const (
	// DefaultOffset applies when a deadline is added without offsets.
	DefaultOffset = 7
	// DefaultUpcomingDays is the window used when none is given.
	DefaultUpcomingDays = 30
)

// Scheduler serializes mutations through one writer and serves reads from
// the last committed snapshot. Other processes may share the store file:
// writers hold the file lock, and reads reload the snapshot when the file
// has been replaced since it was taken.
type Scheduler struct {
	store *FileStore
	now   func() time.Time
	log   logger.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	snapshot map[string]models.Deadline
	// seen is the file the snapshot was taken from; gen counts publishes.
	seen os.FileInfo
	gen  uint64
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Open loads the store at path. A missing file starts an empty store.
func Open(path string, log logger.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{store: NewFileStore(path), now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	info, err := s.store.Stat()
	if err != nil {
		return nil, err
	}
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	s.snapshot = records
	s.seen = info
	return s, nil
}

// Add upserts the deadline for grantID. A changed timestamp, or re-adding a
// removed grant, resets the reminder history; otherwise the history is kept
// for offsets that remain and the status follows it, so adding an offset to
// a fully notified deadline makes it partial again.
func (s *Scheduler) Add(ctx context.Context, grantID string, deadlineAt time.Time, offsets []int) (models.Deadline, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return models.Deadline{}, apperr.InvalidParameter("grant_id is required")
	}
	if deadlineAt.IsZero() {
		return models.Deadline{}, apperr.InvalidParameter("deadline timestamp is required")
	}
	norm, err := normalizeOffsets(offsets)
	if err != nil {
		return models.Deadline{}, err
	}
	deadlineAt = deadlineAt.UTC()

	var out models.Deadline
	err = s.mutate(ctx, "add", func(records map[string]models.Deadline) bool {
		now := s.now().UTC()
		existing, ok := records[grantID]

		d := models.Deadline{
			GrantID:         grantID,
			DeadlineAt:      deadlineAt,
			NotifyOffsets:   norm,
			Status:          models.StatusPending,
			NotifiedOffsets: []int{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if ok {
			d.CreatedAt = existing.CreatedAt
			if existing.Status != models.StatusRemoved && existing.DeadlineAt.Equal(deadlineAt) {
				d.NotifiedOffsets = intersect(existing.NotifiedOffsets, norm)
				d.Status = statusFor(existing.Status, d.NotifyOffsets, d.NotifiedOffsets)
				if sameDeadline(existing, d) {
					out = existing
					return false
				}
			}
		}
		records[grantID] = d
		out = d
		return true
	})
	if err != nil {
		return models.Deadline{}, err
	}
	return out, nil
}

// Get returns the active deadline for grantID.
func (s *Scheduler) Get(grantID string) (models.Deadline, error) {
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.snapshot[grantID]
	if !ok || d.Status == models.StatusRemoved {
		return models.Deadline{}, apperr.NotFound("deadline", grantID)
	}
	return d, nil
}

// List returns every non-removed deadline, soonest first.
func (s *Scheduler) List() []models.Deadline {
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Deadline, 0, len(s.snapshot))
	for _, d := range s.snapshot {
		if d.Status != models.StatusRemoved {
			out = append(out, d)
		}
	}
	sortDeadlines(out)
	return out
}

// Upcoming returns the deadlines falling between now and withinDays from now.
func (s *Scheduler) Upcoming(withinDays int) ([]models.Deadline, error) {
	if withinDays < 0 {
		return nil, apperr.InvalidParameter("within_days must be non-negative")
	}
	now := s.now()
	limit := time.Duration(withinDays) * 24 * time.Hour

	out := []models.Deadline{}
	for _, d := range s.List() {
		remaining := d.DeadlineAt.Sub(now)
		if remaining >= 0 && remaining <= limit {
			out = append(out, d)
		}
	}
	return out, nil
}

// Remove marks grantID removed. Unknown or already removed ids are a no-op.
func (s *Scheduler) Remove(ctx context.Context, grantID string) error {
	return s.mutate(ctx, "remove", func(records map[string]models.Deadline) bool {
		d, ok := records[grantID]
		if !ok || d.Status == models.StatusRemoved {
			return false
		}
		d.Status = models.StatusRemoved
		d.UpdatedAt = s.now().UTC()
		records[grantID] = d
		return true
	})
}

// ComputeDueNotifications advances every pending or partially notified
// deadline and returns the reminders that became due at now. A deadline at
// or past now becomes passed, fully notified ones included; offsets it never
// fired are dropped, not emitted late.
func (s *Scheduler) ComputeDueNotifications(ctx context.Context, now time.Time) ([]models.DueNotification, error) {
	due := []models.DueNotification{}
	err := s.mutate(ctx, "notify", func(records map[string]models.Deadline) bool {
		due = due[:0]
		changed := false
		for id, d := range records {
			if d.Status == models.StatusPassed || d.Status == models.StatusRemoved {
				continue
			}

			remaining := d.DeadlineAt.Sub(now)
			if remaining <= 0 {
				d.Status = models.StatusPassed
				d.UpdatedAt = now.UTC()
				records[id] = d
				changed = true
				continue
			}
			if d.Status == models.StatusNotifiedFull {
				continue
			}

			fired := map[int]bool{}
			for _, o := range d.NotifiedOffsets {
				fired[o] = true
			}
			var newly []int
			for _, o := range d.NotifyOffsets {
				if !fired[o] && remaining <= time.Duration(o)*24*time.Hour {
					newly = append(newly, o)
				}
			}
			if len(newly) == 0 {
				continue
			}

			d.NotifiedOffsets = nonNil(append(d.NotifiedOffsets, newly...))
			d.Status = statusFor(d.Status, d.NotifyOffsets, d.NotifiedOffsets)
			d.UpdatedAt = now.UTC()
			records[id] = d
			changed = true
			for _, o := range newly {
				due = append(due, models.DueNotification{GrantID: id, Offset: o, DeadlineAt: d.DeadlineAt})
			}
		}
		return changed
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.DeadlineAt.Equal(b.DeadlineAt) {
			return a.DeadlineAt.Before(b.DeadlineAt)
		}
		if a.GrantID != b.GrantID {
			return a.GrantID < b.GrantID
		}
		return a.Offset > b.Offset
	})
	metrics.NotificationsDue.Add(float64(len(due)))
	if len(due) > 0 {
		s.log.Info("deadline reminders due", map[string]interface{}{"count": len(due)})
	}
	return due, nil
}

// mutate re-reads the store under the writer and file locks, applies fn and
// commits when fn reports a change. The read snapshot is replaced only after
// the file is in place.
func (s *Scheduler) mutate(ctx context.Context, op string, fn func(map[string]models.Deadline) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	unlock, err := s.store.Lock(ctx)
	if err != nil {
		metrics.DeadlineMutations.WithLabelValues(op, "error").Inc()
		s.log.WithError(err).Error("deadline store lock failed", map[string]interface{}{"op": op, "path": s.store.Path()})
		return err
	}
	defer unlock()

	info, err := s.store.Stat()
	if err != nil {
		metrics.DeadlineMutations.WithLabelValues(op, "error").Inc()
		return err
	}
	records, err := s.store.Load()
	if err != nil {
		metrics.DeadlineMutations.WithLabelValues(op, "error").Inc()
		s.log.WithError(err).Error("deadline store unreadable", map[string]interface{}{"op": op, "path": s.store.Path()})
		return err
	}

	if !fn(records) {
		s.publish(records, info)
		metrics.DeadlineMutations.WithLabelValues(op, "noop").Inc()
		return nil
	}

	if err := s.store.Save(records); err != nil {
		metrics.DeadlineMutations.WithLabelValues(op, "error").Inc()
		s.log.WithError(err).Error("deadline store write failed", map[string]interface{}{"op": op, "path": s.store.Path()})
		return err
	}
	// The lock is still held, so the file is the one just written.
	info, _ = s.store.Stat()
	s.publish(records, info)
	metrics.DeadlineMutations.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *Scheduler) publish(records map[string]models.Deadline, info os.FileInfo) {
	s.mu.Lock()
	s.snapshot = records
	s.seen = info
	s.gen++
	s.mu.Unlock()
}

// refresh reloads the snapshot when another writer has replaced the store
// file. A file that fails to load leaves the last good snapshot in place.
func (s *Scheduler) refresh() {
	info, err := s.store.Stat()
	if err != nil {
		return
	}
	s.mu.RLock()
	current := sameFile(s.seen, info)
	gen := s.gen
	s.mu.RUnlock()
	if current {
		return
	}

	records, err := s.store.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// A local commit landed meanwhile and is at least as new.
		return
	}
	s.seen = info
	if err != nil {
		s.log.WithError(err).Warn("deadline store changed but is unreadable, serving last snapshot", map[string]interface{}{"path": s.store.Path()})
		return
	}
	s.snapshot = records
	s.gen++
}

func normalizeOffsets(offsets []int) ([]int, error) {
	if len(offsets) == 0 {
		return []int{DefaultOffset}, nil
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o <= 0 {
			return nil, apperr.InvalidParameter("notify offsets must be positive, got %d", o)
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Ints(out)
	return out, nil
}

func intersect(notified, offsets []int) []int {
	keep := map[int]bool{}
	for _, o := range offsets {
		keep[o] = true
	}
	out := []int{}
	for _, o := range notified {
		if keep[o] {
			out = append(out, o)
		}
	}
	sort.Ints(out)
	return out
}

func statusFor(current models.DeadlineStatus, offsets, notified []int) models.DeadlineStatus {
	if current == models.StatusPassed {
		return current
	}
	switch {
	case len(notified) == 0:
		return models.StatusPending
	case len(notified) >= len(offsets):
		return models.StatusNotifiedFull
	default:
		return models.StatusNotifiedPartial
	}
}

func sameDeadline(a, b models.Deadline) bool {
	return a.DeadlineAt.Equal(b.DeadlineAt) && a.Status == b.Status &&
		equalInts(a.NotifyOffsets, b.NotifyOffsets) && equalInts(a.NotifiedOffsets, b.NotifiedOffsets)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortDeadlines(ds []models.Deadline) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].DeadlineAt.Equal(ds[j].DeadlineAt) {
			return ds[i].DeadlineAt.Before(ds[j].DeadlineAt)
		}
		return ds[i].GrantID < ds[j].GrantID
	})
}
