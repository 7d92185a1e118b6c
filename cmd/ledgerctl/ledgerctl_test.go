package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/app"
)

func memoryContainer(t *testing.T) *app.Container {
	t.Helper()
	cfg := &app.Config{AppEnv: "test", StoreDriver: app.StoreMemory, RateLimitPerMinute: 1}
	c, err := app.NewContainer(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSeedDemoBalances(t *testing.T) {
	ctx := context.Background()
	c := memoryContainer(t)
	var log bytes.Buffer

	res, err := seedDemo(ctx, c, 1, 2024, &log)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Invoice, "SI-"), res.Invoice)
	require.Len(t, res.Ledgers, len(demoLedgers))
	require.Contains(t, log.String(), "opened book FY2024")

	tb, err := c.Reports.TrialBalance(ctx, 1, 2024)
	require.NoError(t, err)
	require.True(t, tb.Difference.IsZero(), tb.Difference.String())
	require.True(t, tb.ClosingDebit.Equal(tb.ClosingCredit))

	var out bytes.Buffer
	printTrialBalance(&out, tb)
	require.Contains(t, out.String(), "[BALANCED]")
	require.Contains(t, out.String(), "Meezan Bank")

	cash := res.Ledgers[chart.LedgerCash]
	book, err := c.Reports.LedgerBook(ctx, cash.ID, res.Book.StartDate, res.Book.EndDate)
	require.NoError(t, err)
	require.True(t, book.Drift.IsZero())
	out.Reset()
	printLedgerBook(&out, book)
	require.Contains(t, out.String(), "50000.00")

	_, err = seedDemo(ctx, c, 1, 2024, &log)
	require.Error(t, err, "a second seed overlaps the open book")
}

func TestLedgerBookRejectsBadArguments(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"ledger-book", "abc"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.ErrorContains(t, err, `invalid ledger id "abc"`)

	cmd = newRootCmd()
	cmd.SetArgs([]string{"ledger-book", "3", "--from", "01/02/2024"})
	cmd.SetOut(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestMigrateNeedsPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("REDIS_ADDR", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "--store", "memory"})
	cmd.SetOut(&bytes.Buffer{})
	require.ErrorContains(t, cmd.Execute(), "postgres")
}
