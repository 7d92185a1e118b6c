package journal

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
)

var systemLedgerNames = map[chart.LedgerType]string{
	chart.LedgerOwnerCapital:     "Owner's Capital",
	chart.LedgerSales:            "Sales",
	chart.LedgerPurchase:         "Purchase",
	chart.LedgerDiscountAllowed:  "Discount Allowed",
	chart.LedgerDiscountReceived: "Discount Received",
	chart.LedgerCartage:          "Cartage",
	chart.LedgerDutiesAndTaxes:   "Duties & Taxes",
}

var defaultGroupNames = map[chart.Nature]string{
	chart.NatureAssets:      "Assets",
	chart.NatureLiabilities: "Liabilities",
	chart.NatureCapital:     "Capital",
	chart.NatureIncome:      "Income",
	chart.NatureExpenses:    "Expenses",
}

// EnsureSystemLedger returns the branch's ledger of type t, creating it (and a
// top-level group of the matching nature when none exists) on first use.
func EnsureSystemLedger(ctx context.Context, tx chart.TxRepository, branchID int64, t chart.LedgerType, now time.Time) (chart.Ledger, error) {
	ledger, err := tx.FindLedgerByType(ctx, branchID, t)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, chart.ErrLedgerNotFound) {
		return chart.Ledger{}, err
	}
	nature, ok := t.Nature()
	if !ok {
		return chart.Ledger{}, chart.ErrUnknownLedgerType
	}
	group, err := tx.FindGroupByNature(ctx, nature)
	if errors.Is(err, chart.ErrGroupNotFound) {
		group, err = chart.AddGroup(ctx, tx, chart.GroupInput{Name: defaultGroupNames[nature], Nature: nature}, now)
	}
	if err != nil {
		return chart.Ledger{}, err
	}
	name, ok := systemLedgerNames[t]
	if !ok {
		name = string(t)
	}
	ledger, err = chart.AddLedger(ctx, tx, chart.LedgerInput{
		Name:     name,
		Type:     t,
		GroupID:  group.ID,
		BranchID: branchID,
	}, now)
	if errors.Is(err, chart.ErrDuplicateName) {
		// A concurrent first use created it while we waited on the group lock.
		return tx.FindLedgerByType(ctx, branchID, t)
	}
	return ledger, err
}

// PostOpeningBalance records a ledger's opening balance as a balanced pair:
// the ledger's own leg, flagged as opening, and a contra leg against the
// branch's Owner's Capital. A zero opening posts nothing.
func PostOpeningBalance(ctx context.Context, tx TxRepository, ledger chart.Ledger, date, now time.Time) (PostingResult, error) {
	if ledger.OpeningBalance.IsZero() {
		return PostingResult{}, nil
	}
	if ledger.Type == chart.LedgerOwnerCapital {
		return PostingResult{}, ErrCapitalOpening
	}
	capital, err := EnsureSystemLedger(ctx, tx, ledger.BranchID, chart.LedgerOwnerCapital, now)
	if err != nil {
		return PostingResult{}, err
	}
	own := Credit
	if ledger.Nature.DebitNormal() {
		own = Debit
	}
	if ledger.OpeningBalance.IsNegative() {
		own = own.Opposite()
	}
	amount := ledger.OpeningBalance.Abs()
	reference := "OB-" + strconv.FormatInt(ledger.ID, 10)
	return Post(ctx, tx, PostingInput{
		BranchID:     ledger.BranchID,
		Date:         date,
		Reference:    reference,
		SourceModule: "opening",
		SourceID:     SourceID("opening", reference),
		Lines: []Line{
			{LedgerID: ledger.ID, Type: own, Amount: amount, Narration: "Opening balance", IsOpening: true},
			{LedgerID: capital.ID, Type: own.Opposite(), Amount: amount, Narration: "Opening balance of " + ledger.Name},
		},
	}, now)
}
