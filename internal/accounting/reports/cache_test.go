package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
)

type fakeRepo struct {
	ledgers      []chart.Ledger
	groups       []chart.AccountGroup
	books        []journal.Book
	activity     []Activity
	activityCall int
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetLedger(_ context.Context, id int64) (chart.Ledger, error) {
	for _, l := range f.ledgers {
		if l.ID == id {
			return l, nil
		}
	}
	return chart.Ledger{}, chart.ErrLedgerNotFound
}

func (f *fakeRepo) ListLedgers(context.Context, chart.LedgerFilter) ([]chart.Ledger, error) {
	return f.ledgers, nil
}

func (f *fakeRepo) ListGroups(context.Context) ([]chart.AccountGroup, error) { return f.groups, nil }

func (f *fakeRepo) ListBooks(context.Context, int64) ([]journal.Book, error) { return f.books, nil }

func (f *fakeRepo) ListLedgerEntries(context.Context, int64) ([]journal.Entry, error) {
	return nil, nil
}

func (f *fakeRepo) LedgerActivity(context.Context, int64, time.Time, time.Time) ([]Activity, error) {
	f.activityCall++
	return f.activity, nil
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ledgers: []chart.Ledger{
			{ID: 1, Code: "1.1", Name: "Cash", Nature: chart.NatureAssets, BranchID: 1},
			{ID: 2, Code: "4.1", Name: "Sales", Nature: chart.NatureIncome, BranchID: 1},
		},
		groups: []chart.AccountGroup{
			{ID: 1, Code: "1", Name: "Assets", Nature: chart.NatureAssets},
			{ID: 4, Code: "4", Name: "Income", Nature: chart.NatureIncome},
		},
		books: []journal.Book{{ID: 9, BranchID: 1, FinancialYearID: 2024,
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}},
		activity: []Activity{
			{LedgerID: 1, Debit: decimal.NewFromInt(75)},
			{LedgerID: 2, Credit: decimal.NewFromInt(75)},
		},
	}
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr, client
}

func TestCacheVersionAndBump(t *testing.T) {
	ctx := context.Background()
	cache, _, client := newRedisCache(t)

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "tb", "1", "2024")
	require.NoError(t, err)
	require.Equal(t, "reports:tb:1:2024:v1", key)

	sub := client.Subscribe(ctx, bumpChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, "2", msg.Payload)

	key, err = cache.BuildKey(ctx, "tb", "1", "2024")
	require.NoError(t, err)
	require.Equal(t, "reports:tb:1:2024:v2", key)
}

func TestBumpPurgesReportsWhenVersionCannotMove(t *testing.T) {
	ctx := context.Background()
	cache, mr, _ := newRedisCache(t)
	require.NoError(t, mr.Set(cacheVersionKey, "not-a-number"))
	require.NoError(t, mr.Set("reports:tb:1:2024:v7", `{"branch_id":1}`))
	require.NoError(t, mr.Set("reports:pl:1:2024:v7", `{}`))
	require.NoError(t, mr.Set("sessions:abc", "keep"))

	require.NoError(t, cache.Bump(ctx))
	require.False(t, mr.Exists("reports:tb:1:2024:v7"))
	require.False(t, mr.Exists("reports:pl:1:2024:v7"))
	require.True(t, mr.Exists("sessions:abc"))

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestBumpReportsErrorWhenRedisIsDown(t *testing.T) {
	cache, mr, _ := newRedisCache(t)
	mr.Close()
	require.Error(t, cache.Bump(context.Background()))
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	ctx := context.Background()
	var cache *Cache
	key, err := cache.BuildKey(ctx, "tb", "1", "2024")
	require.NoError(t, err)
	require.Equal(t, "reports:tb:1:2024", key)

	var out map[string]int
	err = cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return map[string]int{"a": 1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, out["a"])
	require.NoError(t, cache.Bump(ctx))
}

func TestTrialBalanceIsCachedUntilBump(t *testing.T) {
	ctx := context.Background()
	cache, mr, _ := newRedisCache(t)
	repo := newFakeRepo()
	svc := NewService(repo, cache, nil)

	tb, err := svc.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.True(t, tb.Difference.IsZero())
	require.Equal(t, "Assets", tb.Groups[0].Name)
	require.True(t, tb.ClosingDebit.Equal(decimal.NewFromInt(75)))
	require.True(t, mr.Exists("reports:tb:1:2024:v1"))

	_, err = svc.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.Equal(t, 1, repo.activityCall)

	require.NoError(t, svc.Bump(ctx))
	_, err = svc.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.Equal(t, 2, repo.activityCall)
}

func TestReportsFallBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	cache, mr, _ := newRedisCache(t)
	mr.Close()
	svc := NewService(newFakeRepo(), cache, nil)

	pl, err := svc.ProfitAndLoss(ctx, 1, 2024)
	require.NoError(t, err)
	require.True(t, pl.NetIncome.Equal(decimal.NewFromInt(75)))
}

func TestReportsRequireKnownBook(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)
	_, err := svc.BalanceSheet(context.Background(), 1, 2023)
	require.ErrorIs(t, err, journal.ErrBookNotFound)

	_, err = svc.TrialBalance(context.Background(), 0, 2024)
	require.Error(t, err)

	bs, err := svc.BalanceSheet(context.Background(), 1, 2024)
	require.NoError(t, err)
	require.True(t, bs.Difference.IsZero())
	require.True(t, bs.RetainedEarnings.Equal(decimal.NewFromInt(75)))
}
