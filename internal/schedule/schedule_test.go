package schedule

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
)

type fakeScanner struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
}

func (f *fakeScanner) FullScan(ctx context.Context, target string, ports []int) (*recon.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &recon.Report{
		ID:     uuid.New(),
		Mode:   recon.ModeFull,
		Target: recon.Target{Input: target, Address: netip.MustParseAddr("192.0.2.10")},
	}, nil
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu      sync.Mutex
	reports []*recon.Report
	err     error
}

func (f *fakeStore) SaveReport(_ context.Context, report *recon.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

func newTestScheduler(scanner Scanner, store ReportSaver) *Scheduler {
	return New(scanner, store, time.Second, logging.NewDiscard())
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		{"every five minutes", "*/5 * * * *", false},
		{"descriptor", "@hourly", false},
		{"too few fields", "* * *", true},
		{"seconds field rejected", "0 */5 * * * *", true},
		{"garbage", "whenever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Job{Name: "j", Cron: tt.cron, Target: "192.0.2.10"}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduler_Add(t *testing.T) {
	s := newTestScheduler(&fakeScanner{}, nil)

	require.NoError(t, s.Add(Job{Name: "nightly", Cron: "0 3 * * *", Target: "192.0.2.10"}))

	err := s.Add(Job{Name: "nightly", Cron: "0 4 * * *", Target: "192.0.2.11"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already scheduled")

	err = s.Add(Job{Name: "broken", Cron: "not a cron", Target: "192.0.2.12"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "nightly", status[0].Name)
	assert.Equal(t, 0, status[0].Runs)
}

func TestScheduler_RunSavesReport(t *testing.T) {
	scanner := &fakeScanner{}
	store := &fakeStore{}
	s := newTestScheduler(scanner, store)
	require.NoError(t, s.Add(Job{Name: "db", Cron: "@daily", Target: "db.internal", Ports: []int{5432}}))

	s.run("db")

	assert.Equal(t, 1, scanner.callCount())
	require.Len(t, store.reports, 1)
	assert.Equal(t, "db.internal", store.reports[0].Target.Input)

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 1, status[0].Runs)
	assert.Empty(t, status[0].LastError)
	assert.False(t, status[0].LastRun.IsZero())
	assert.Equal(t, []int{5432}, status[0].Ports)
}

func TestScheduler_RunRecordsFailures(t *testing.T) {
	t.Run("scan failure", func(t *testing.T) {
		store := &fakeStore{}
		s := newTestScheduler(&fakeScanner{err: errors.New("resolution failed")}, store)
		require.NoError(t, s.Add(Job{Name: "web", Cron: "@hourly", Target: "web.internal"}))

		s.run("web")

		assert.Empty(t, store.reports)
		status := s.Status()
		assert.Equal(t, 1, status[0].Runs)
		assert.Equal(t, "resolution failed", status[0].LastError)
	})

	t.Run("save failure", func(t *testing.T) {
		s := newTestScheduler(&fakeScanner{}, &fakeStore{err: errors.New("database unavailable")})
		require.NoError(t, s.Add(Job{Name: "web", Cron: "@hourly", Target: "web.internal"}))

		s.run("web")

		assert.Equal(t, "database unavailable", s.Status()[0].LastError)
	})

	t.Run("next run clears the error", func(t *testing.T) {
		scanner := &fakeScanner{err: errors.New("boom")}
		s := newTestScheduler(scanner, nil)
		require.NoError(t, s.Add(Job{Name: "web", Cron: "@hourly", Target: "web.internal"}))

		s.run("web")
		scanner.err = nil
		s.run("web")

		status := s.Status()
		assert.Equal(t, 2, status[0].Runs)
		assert.Empty(t, status[0].LastError)
	})
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{})}
	s := newTestScheduler(scanner, nil)
	require.NoError(t, s.Add(Job{Name: "slow", Cron: "@hourly", Target: "192.0.2.10"}))

	done := make(chan struct{})
	go func() {
		s.run("slow")
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Status()[0].Running }, time.Second, 5*time.Millisecond)

	s.run("slow")
	assert.Equal(t, 1, scanner.callCount())

	close(scanner.block)
	<-done
	assert.Equal(t, 1, s.Status()[0].Runs)
}

func TestScheduler_StopCancelsRuns(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{})}
	s := New(scanner, nil, 0, logging.NewDiscard())
	require.NoError(t, s.Add(Job{Name: "slow", Cron: "@hourly", Target: "192.0.2.10"}))
	require.NoError(t, s.Start())
	require.Error(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.run("slow")
		close(done)
	}()
	require.Eventually(t, func() bool { return s.Status()[0].Running }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not observe cancellation")
	}
	assert.Equal(t, context.Canceled.Error(), s.Status()[0].LastError)

	// A second stop is a no-op.
	s.Stop(ctx)
}

func TestScheduler_StatusOrderedByName(t *testing.T) {
	s := newTestScheduler(&fakeScanner{}, nil)
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.Add(Job{Name: name, Cron: "@daily", Target: "192.0.2.10"}))
	}

	var names []string
	for _, st := range s.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
