package deadlines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/models"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func openTestScheduler(t *testing.T) (*Scheduler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "deadlines.json")
	s, err := Open(path, logger.NewTestLogger(t), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return s, path
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}

func TestComputeDueNotifications_PartialScenario(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "G1", mustParse(t, "2026-03-15T23:59:59Z"), []int{14, 7})
	require.NoError(t, err)

	due, err := s.ComputeDueNotifications(ctx, mustParse(t, "2026-03-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "G1", due[0].GrantID)
	assert.Equal(t, 14, due[0].Offset)

	d, err := s.Get("G1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotifiedPartial, d.Status)
	assert.Equal(t, []int{14}, d.NotifiedOffsets)

	// Same instant again: nothing new.
	due, err = s.ComputeDueNotifications(ctx, mustParse(t, "2026-03-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.ComputeDueNotifications(ctx, mustParse(t, "2026-03-10T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 7, due[0].Offset)

	d, err = s.Get("G1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotifiedFull, d.Status)

	// Once past, a fully notified deadline closes as passed without emitting.
	due, err = s.ComputeDueNotifications(ctx, mustParse(t, "2026-04-01T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, due)
	d, _ = s.Get("G1")
	assert.Equal(t, models.StatusPassed, d.Status)
	assert.Equal(t, []int{7, 14}, d.NotifiedOffsets)
}

func TestComputeDueNotifications_OrderingAndPassed(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()
	now := testNow

	_, err := s.Add(ctx, "B", now.Add(3*24*time.Hour), []int{7, 14, 3})
	require.NoError(t, err)
	_, err = s.Add(ctx, "A", now.Add(3*24*time.Hour), []int{5})
	require.NoError(t, err)
	_, err = s.Add(ctx, "C", now.Add(24*time.Hour), []int{2})
	require.NoError(t, err)
	_, err = s.Add(ctx, "OLD", now.Add(-time.Hour), []int{1})
	require.NoError(t, err)
	_, err = s.Add(ctx, "LATER", now.Add(60*24*time.Hour), []int{7})
	require.NoError(t, err)

	due, err := s.ComputeDueNotifications(ctx, now)
	require.NoError(t, err)

	got := make([][2]interface{}, len(due))
	for i, d := range due {
		got[i] = [2]interface{}{d.GrantID, d.Offset}
	}
	assert.Equal(t, [][2]interface{}{
		{"C", 2},
		{"A", 5},
		{"B", 14},
		{"B", 7},
		{"B", 3},
	}, got)

	old, err := s.Get("OLD")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPassed, old.Status)

	later, err := s.Get("LATER")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, later.Status)
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	s, path := openTestScheduler(t)
	ctx := context.Background()
	ts := mustParse(t, "2026-05-01T17:00:00Z")

	_, err := s.Add(ctx, "G", ts, []int{7})
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "G", list[0].GrantID)
	assert.True(t, ts.Equal(list[0].DeadlineAt))

	require.NoError(t, s.Remove(ctx, "G"))
	assert.Empty(t, s.List())
	require.NoError(t, s.Remove(ctx, "G"))
	require.NoError(t, s.Remove(ctx, "NEVER-ADDED"))

	_, err = s.Get("G")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	reopened, err := Open(path, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Empty(t, reopened.List())
}

func TestAddIsAnUpsert(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()
	ts := testNow.Add(10 * 24 * time.Hour)

	first, err := s.Add(ctx, "G", ts, []int{14, 7})
	require.NoError(t, err)
	_, err = s.ComputeDueNotifications(ctx, testNow)
	require.NoError(t, err)

	// Same timestamp: history kept.
	again, err := s.Add(ctx, "G", ts, []int{7, 14, 14})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 14}, again.NotifyOffsets)
	assert.Equal(t, []int{14}, again.NotifiedOffsets)
	assert.Equal(t, models.StatusNotifiedPartial, again.Status)
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt))

	// Dropping the fired offset leaves nothing notified.
	fewer, err := s.Add(ctx, "G", ts, []int{7})
	require.NoError(t, err)
	assert.Empty(t, fewer.NotifiedOffsets)
	assert.Equal(t, models.StatusPending, fewer.Status)

	_, err = s.ComputeDueNotifications(ctx, testNow.Add(4*24*time.Hour))
	require.NoError(t, err)
	d, _ := s.Get("G")
	assert.Equal(t, models.StatusNotifiedFull, d.Status)

	// New timestamp: history reset.
	moved, err := s.Add(ctx, "G", ts.Add(30*24*time.Hour), []int{7})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, moved.Status)
	assert.Empty(t, moved.NotifiedOffsets)

	assert.Len(t, s.List(), 1)
}

func TestReAddAfterRemoveResets(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()
	ts := testNow.Add(5 * 24 * time.Hour)

	_, err := s.Add(ctx, "G", ts, []int{7})
	require.NoError(t, err)
	_, err = s.ComputeDueNotifications(ctx, testNow)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "G"))

	d, err := s.Add(ctx, "G", ts, []int{7})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, d.Status)
	assert.Empty(t, d.NotifiedOffsets)
}

func TestAddInvalidParameters(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		grantID string
		ts      time.Time
		offsets []int
	}{
		{"blank id", "  ", testNow, []int{7}},
		{"zero timestamp", "G", time.Time{}, []int{7}},
		{"zero offset", "G", testNow, []int{0}},
		{"negative offset", "G", testNow, []int{7, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(ctx, tt.grantID, tt.ts, tt.offsets)
			assert.True(t, errors.Is(err, apperr.ErrInvalidParameter))
		})
	}

	d, err := s.Add(ctx, "G", testNow.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultOffset}, d.NotifyOffsets)
}

func TestUpcoming(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()

	for id, days := range map[string]float64{"SOON": 3, "EDGE": 30, "FAR": 31, "PAST": -1} {
		_, err := s.Add(ctx, id, testNow.Add(time.Duration(days*24)*time.Hour), []int{7})
		require.NoError(t, err)
	}

	got, err := s.Upcoming(30)
	require.NoError(t, err)
	var ids []string
	for _, d := range got {
		ids = append(ids, d.GrantID)
	}
	assert.Equal(t, []string{"SOON", "EDGE"}, ids)

	_, err = s.Upcoming(-1)
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameter))

	all := s.List()
	require.Len(t, all, 4)
	assert.Equal(t, "PAST", all[0].GrantID)
}

func TestCrashDuringWriteKeepsPriorState(t *testing.T) {
	s, path := openTestScheduler(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "KEEP", testNow.Add(48*time.Hour), []int{1})
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	orig := renameFile
	renameFile = func(string, string) error { return errors.New("power lost") }
	t.Cleanup(func() { renameFile = orig })

	_, err = s.Add(ctx, "LOST", testNow.Add(72*time.Hour), []int{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The failed write is not visible to readers either.
	_, err = s.Get("LOST")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// A leftover temp file from an interrupted write does not affect a fresh read.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".deadlines.json.tmp-crash"), []byte(`{"LOST": {`), 0o644))
	renameFile = orig

	fresh, err := Open(path, logger.NewNoOpLogger())
	require.NoError(t, err)
	list := fresh.List()
	require.Len(t, list, 1)
	assert.Equal(t, "KEEP", list[0].GrantID)
}

func TestCorruptStoreIsPersistenceError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"G": {"deadline_timestamp": "2026-03-01T00:00:00Z"`},
		{"bad status", `{"G": {"deadline_timestamp": "2026-03-01T00:00:00Z", "notify_offsets": [7], "status": "snoozed", "notified_offsets": []}}`},
		{"negative offset", `{"G": {"deadline_timestamp": "2026-03-01T00:00:00Z", "notify_offsets": [-7], "status": "pending", "notified_offsets": []}}`},
		{"missing field", `{"G": {"notify_offsets": [7], "status": "pending", "notified_offsets": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "deadlines.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Open(path, logger.NewNoOpLogger())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrPersistence))
		})
	}
}

func TestCorruptionAfterOpenFailsMutationsWithoutTouchingFile(t *testing.T) {
	s, path := openTestScheduler(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "G", testNow.Add(time.Hour), []int{1})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	err = s.Remove(ctx, "G")
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))

	// Readers keep the last committed snapshot.
	_, err = s.Get("G")
	assert.NoError(t, err)
}

func TestConcurrentAddsAreAllPersisted(t *testing.T) {
	s, path := openTestScheduler(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(ctx, string(rune('A'+i)), testNow.Add(time.Duration(i+1)*time.Hour), []int{1})
			assert.NoError(t, err)
			_ = s.List()
		}(i)
	}
	wg.Wait()

	reopened, err := Open(path, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Len(t, reopened.List(), 20)
}

func TestSchedulersSharingAStoreFile(t *testing.T) {
	a, path := openTestScheduler(t)
	b, err := Open(path, logger.NewTestLogger(t), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, tc := range []struct {
		prefix string
		s      *Scheduler
	}{{"A", a}, {"B", b}} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(prefix string, s *Scheduler, i int) {
				defer wg.Done()
				_, err := s.Add(ctx, fmt.Sprintf("%s-%02d", prefix, i), testNow.Add(time.Duration(i+1)*time.Hour), []int{1})
				assert.NoError(t, err)
			}(tc.prefix, tc.s, i)
		}
	}
	wg.Wait()

	reopened, err := Open(path, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Len(t, reopened.List(), 100)

	// Each instance sees the other's writes without mutating itself.
	assert.Len(t, a.List(), 100)
	assert.Len(t, b.List(), 100)

	_, err = a.Add(ctx, "LATE", testNow.Add(48*time.Hour), []int{1})
	require.NoError(t, err)
	d, err := b.Get("LATE")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, d.Status)

	require.NoError(t, b.Remove(ctx, "LATE"))
	_, err = a.Get("LATE")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAddingAnOffsetReopensAFullyNotifiedDeadline(t *testing.T) {
	s, _ := openTestScheduler(t)
	ctx := context.Background()
	ts := testNow.Add(10 * 24 * time.Hour)

	_, err := s.Add(ctx, "G", ts, []int{14})
	require.NoError(t, err)
	due, err := s.ComputeDueNotifications(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, due, 1)
	d, _ := s.Get("G")
	require.Equal(t, models.StatusNotifiedFull, d.Status)

	// Same timestamp: the sent reminder is kept and the new offset is owed.
	d, err = s.Add(ctx, "G", ts, []int{14, 3})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotifiedPartial, d.Status)
	assert.Equal(t, []int{14}, d.NotifiedOffsets)

	due, err = s.ComputeDueNotifications(ctx, ts.Add(-2*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 3, due[0].Offset)
	d, _ = s.Get("G")
	assert.Equal(t, models.StatusNotifiedFull, d.Status)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-15T23:59:59Z", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)},
		{"2026-03-15T18:00:00-05:00", time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)},
		{"2026-03-15T12:00:00", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"2026-03-15", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), got)
		})
	}

	_, err := ParseTimestamp("next friday")
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameter))
}
