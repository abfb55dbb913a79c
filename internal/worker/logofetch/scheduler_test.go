package logofetch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/minami/naraigoto/internal/model"
)

// mockProviderRepo はListNeedingLogoFetchのみを実装するProviderRepositoryモック。
type mockProviderRepo struct {
	records []*model.ProviderRecord
	listErr error
}

func (m *mockProviderRepo) FindByID(context.Context, string) (*model.ProviderRecord, error) {
	return nil, nil
}

func (m *mockProviderRepo) FindByOwnerID(context.Context, string) (*model.ProviderRecord, error) {
	return nil, nil
}

func (m *mockProviderRepo) Create(context.Context, *model.ProviderRecord) error { return nil }

func (m *mockProviderRepo) Update(context.Context, *model.ProviderRecord) error { return nil }

func (m *mockProviderRepo) UpdateStatus(context.Context, string, model.ProviderStatus, string) error {
	return nil
}

func (m *mockProviderRepo) UpdateLogo(context.Context, string, []byte, string, time.Time) error {
	return nil
}

func (m *mockProviderRepo) UpdateProfileImagePath(context.Context, string, string) error {
	return nil
}

func (m *mockProviderRepo) ListByStatus(context.Context, model.ProviderStatus) ([]*model.ProviderRecord, error) {
	return nil, nil
}

func (m *mockProviderRepo) SearchApproved(context.Context, string, string, int) ([]*model.ProviderRecord, error) {
	return nil, nil
}

func (m *mockProviderRepo) ListNeedingLogoFetch(context.Context, time.Duration, int) ([]*model.ProviderRecord, error) {
	return m.records, m.listErr
}

// countingFetcher は呼び出された教室IDと同時実行数を記録する。
type countingFetcher struct {
	mu          sync.Mutex
	fetched     []string
	inFlight    int
	maxInFlight int
	delay       time.Duration
	err         error
}

func (f *countingFetcher) Fetch(_ context.Context, rec *model.ProviderRecord) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.fetched = append(f.fetched, rec.ID)
	f.mu.Unlock()

	return f.err
}

func TestRunOnce_FetchesAllDueProviders(t *testing.T) {
	repo := &mockProviderRepo{
		records: []*model.ProviderRecord{
			{ID: "p-1", WebsiteURL: "https://one.example.com"},
			{ID: "p-2", WebsiteURL: "https://two.example.com"},
			{ID: "p-3", WebsiteURL: "https://three.example.com"},
		},
	}
	fetcher := &countingFetcher{}
	sched := NewScheduler(repo, fetcher, discardLogger(), 6*time.Hour, 5)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(fetcher.fetched) != 3 {
		t.Errorf("fetched %d providers, want 3", len(fetcher.fetched))
	}
}

func TestRunOnce_NoDueProviders(t *testing.T) {
	repo := &mockProviderRepo{}
	fetcher := &countingFetcher{}
	sched := NewScheduler(repo, fetcher, discardLogger(), 6*time.Hour, 5)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(fetcher.fetched) != 0 {
		t.Errorf("fetched %d providers, want 0", len(fetcher.fetched))
	}
}

func TestRunOnce_ListError(t *testing.T) {
	repo := &mockProviderRepo{listErr: fmt.Errorf("connection refused")}
	sched := NewScheduler(repo, &countingFetcher{}, discardLogger(), 6*time.Hour, 5)

	if err := sched.RunOnce(context.Background()); err == nil {
		t.Error("expected error when listing fails")
	}
}

func TestRunOnce_RespectsMaxConcurrency(t *testing.T) {
	records := make([]*model.ProviderRecord, 10)
	for i := range records {
		records[i] = &model.ProviderRecord{ID: fmt.Sprintf("p-%d", i)}
	}
	repo := &mockProviderRepo{records: records}
	fetcher := &countingFetcher{delay: 20 * time.Millisecond}
	sched := NewScheduler(repo, fetcher, discardLogger(), 6*time.Hour, 2)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if fetcher.maxInFlight > 2 {
		t.Errorf("max concurrent fetches = %d, want <= 2", fetcher.maxInFlight)
	}
	if len(fetcher.fetched) != 10 {
		t.Errorf("fetched %d providers, want 10", len(fetcher.fetched))
	}
}

func TestRunOnce_ContinuesAfterFetchError(t *testing.T) {
	repo := &mockProviderRepo{
		records: []*model.ProviderRecord{
			{ID: "p-1"},
			{ID: "p-2"},
		},
	}
	fetcher := &countingFetcher{err: fmt.Errorf("fetch failed")}
	sched := NewScheduler(repo, fetcher, discardLogger(), 6*time.Hour, 5)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce should not propagate individual fetch errors: %v", err)
	}

	if len(fetcher.fetched) != 2 {
		t.Errorf("fetched %d providers, want 2", len(fetcher.fetched))
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	repo := &mockProviderRepo{}
	sched := NewScheduler(repo, &countingFetcher{}, discardLogger(), 6*time.Hour, 5)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sched.Start(ctx, 1*time.Hour)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}
