package rent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) AddRentOutcome(outcome string, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome] += count
}

func newTestRunner(store *memoryStore, workers int) *Runner {
	svc := NewService(ServiceConfig{Store: store})
	return NewRunner(RunnerConfig{Leases: store, Creator: svc, Workers: workers})
}

func TestRunOnceIsIdempotent(t *testing.T) {
	store := newMemoryStore(testLease(1, 30))
	runner := newTestRunner(store, 2)
	now := date(2024, time.November, 25)

	first, err := runner.RunOnce(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)
	require.Equal(t, 0, first.Skipped)

	second, err := runner.RunOnce(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 1, second.Skipped)
	require.Equal(t, 1, store.count())
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRunOnceSkipsLeasesOutsideWindow(t *testing.T) {
	store := newMemoryStore(testLease(1, 30))
	runner := newTestRunner(store, 1)

	summary, err := runner.RunOnce(context.Background(), date(2024, time.November, 20))
	require.NoError(t, err)
	require.Equal(t, 0, summary.Created)
	require.Equal(t, 1, summary.NotDue)
	require.Zero(t, store.count())
}

func TestRunOnceCatchesUpAfterRollover(t *testing.T) {
	store := newMemoryStore(testLease(1, 3), testLease(2, 2))
	runner := newTestRunner(store, 1)

	summary, err := runner.RunOnce(context.Background(), date(2025, time.January, 30))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Created)

	store.mu.Lock()
	defer store.mu.Unlock()
	_, ok := store.invoices[invoiceKey{tenantID: 1, due: "2024-12-03"}]
	require.True(t, ok)
	_, ok = store.invoices[invoiceKey{tenantID: 2, due: "2024-12-02"}]
	require.True(t, ok)
}

func TestRunOnceIsolatesMalformedLease(t *testing.T) {
	broken := testLease(3, 0)
	store := newMemoryStore(testLease(1, 28), testLease(2, 27), broken, testLease(4, 26))
	runner := newTestRunner(store, 3)

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.NoError(t, err)
	require.Equal(t, 4, summary.Leases)
	require.Equal(t, 3, summary.Created)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, int64(3), summary.Failed[0].TenantID)
	require.Contains(t, summary.Failed[0].Reason, "due day is required")
}

func TestRunOnceFailsTenantWithoutUnit(t *testing.T) {
	lease := testLease(5, 28)
	lease.UnitID = 0
	lease.UnitName = ""
	store := newMemoryStore(lease)
	runner := newTestRunner(store, 1)

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.NoError(t, err)
	require.Len(t, summary.Failed, 1)
	require.Contains(t, summary.Failed[0].Reason, "unit is required")
}

func TestRunOnceRecordsRowRejectionPerTenant(t *testing.T) {
	store := newMemoryStore(testLease(1, 28), testLease(2, 28))
	store.insertErr[2] = errors.New("rent: insert invoice: violates foreign key constraint")
	runner := newTestRunner(store, 2)

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	require.Equal(t, []Failure{{TenantID: 2, Reason: "rent: insert invoice: violates foreign key constraint"}}, summary.Failed)
}

func TestRunOnceAbortsOnStorageFailure(t *testing.T) {
	store := newMemoryStore(testLease(1, 28))
	store.insertErr[1] = fmt.Errorf("%w: insert invoice: %w", ErrStorage, errConnRefused)
	runner := newTestRunner(store, 1)

	_, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.ErrorIs(t, err, ErrStorage)
}

func TestRunOnceAbortsWhenSnapshotUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.leaseErr = errConnRefused
	runner := newTestRunner(store, 1)

	_, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, errConnRefused)
}

func TestRunOnceNeverRecreatesDeletedInvoice(t *testing.T) {
	store := newMemoryStore(testLease(1, 30))
	runner := newTestRunner(store, 1)
	now := date(2024, time.November, 26)

	_, err := runner.RunOnce(context.Background(), now)
	require.NoError(t, err)
	store.softDelete(1, date(2024, time.November, 30))

	summary, err := runner.RunOnce(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Created)
	require.Equal(t, 1, summary.Skipped)
}

func TestConcurrentRunsCreateEachInvoiceOnce(t *testing.T) {
	var leases []Lease
	for i := int64(1); i <= 40; i++ {
		leases = append(leases, testLease(i, 28))
	}
	store := newMemoryStore(leases...)
	svc := NewService(ServiceConfig{Store: store})
	scheduled := NewRunner(RunnerConfig{Leases: store, Creator: svc, Workers: 4})
	backfill := NewRunner(RunnerConfig{Leases: store, Creator: svc, Workers: 3})
	now := date(2024, time.June, 25)

	var wg sync.WaitGroup
	summaries := make([]RunSummary, 2)
	for i, r := range []*Runner{scheduled, backfill} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.RunOnce(context.Background(), now)
			require.NoError(t, err)
			summaries[i] = s
		}()
	}
	wg.Wait()

	require.Equal(t, 40, summaries[0].Created+summaries[1].Created)
	require.Equal(t, 40, summaries[0].Skipped+summaries[1].Skipped)
	require.Equal(t, 40, store.count())
	require.Equal(t, 40, store.inserts)
}

type panickingCreator struct {
	Creator
	tenantID int64
}

func (p panickingCreator) CreateIfAbsent(ctx context.Context, lease Lease, due time.Time) (CreateResult, error) {
	if lease.TenantID == p.tenantID {
		panic("nil unit")
	}
	return p.Creator.CreateIfAbsent(ctx, lease, due)
}

func TestRunOnceRecoversTenantPanic(t *testing.T) {
	store := newMemoryStore(testLease(1, 28), testLease(2, 28))
	creator := panickingCreator{Creator: NewService(ServiceConfig{Store: store}), tenantID: 1}
	runner := NewRunner(RunnerConfig{Leases: store, Creator: creator, Workers: 2})

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	require.Equal(t, []Failure{{TenantID: 1, Reason: "panic: nil unit"}}, summary.Failed)
}

type blockingCreator struct{}

func (blockingCreator) CreateIfAbsent(ctx context.Context, lease Lease, due time.Time) (CreateResult, error) {
	<-ctx.Done()
	return CreateResult{}, ctx.Err()
}

func TestRunOnceHonoursTimeout(t *testing.T) {
	store := newMemoryStore(testLease(1, 28), testLease(2, 28))
	runner := NewRunner(RunnerConfig{Leases: store, Creator: blockingCreator{}, Workers: 1, Timeout: 20 * time.Millisecond})

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 25))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, summary.Created)
}

func TestRunOnceUsesConfiguredLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	store := newMemoryStore(testLease(1, 30))
	runner := NewRunner(RunnerConfig{Leases: store, Creator: NewService(ServiceConfig{Store: store}), Location: ist})

	// 20:00 UTC on the 24th is already the 25th in IST.
	summary, err := runner.RunOnce(context.Background(), time.Date(2024, time.November, 24, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	require.Equal(t, 25, summary.RunDate.Day())
	require.Equal(t, ist, runner.Location())
}

func TestRunOnceReportsOutcomesAndWarnings(t *testing.T) {
	store := newMemoryStore(testLease(1, 28), testLease(2, 0), testLease(3, 30))
	counter := &outcomeCounter{}
	svc := NewService(ServiceConfig{Store: store, Notifier: &recordingNotifier{err: errors.New("smtp down")}})
	runner := NewRunner(RunnerConfig{Leases: store, Creator: svc, Metrics: counter, Workers: 2})

	summary, err := runner.RunOnce(context.Background(), date(2024, time.June, 23))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	require.Equal(t, 1, summary.NotDue)
	require.Len(t, summary.Failed, 1)
	require.Len(t, summary.Warnings, 1)
	require.Contains(t, summary.Warnings[0].Reason, "smtp down")
	require.Equal(t, 1, counter.counts[OutcomeCreated])
	require.Equal(t, 1, counter.counts[OutcomeNotDue])
	require.Equal(t, 1, counter.counts[OutcomeFailed])
	require.Equal(t, 1, counter.counts[OutcomeWarning])
}

func TestRunOnceRequiresDependencies(t *testing.T) {
	_, err := NewRunner(RunnerConfig{}).RunOnce(context.Background(), time.Now())
	require.Error(t, err)
}
