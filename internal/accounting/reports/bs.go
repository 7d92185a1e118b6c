package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
)

// BalanceSheetAccount summarises a ledger for assets, liabilities, or capital.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
// RetainedEarnings is the closing income less expenses, not yet closed into
// capital. Difference is zero when the books balance.
type BalanceSheet struct {
	Assets                     BalanceSheetSection `json:"assets"`
	Liabilities                BalanceSheetSection `json:"liabilities"`
	Capital                    BalanceSheetSection `json:"capital"`
	RetainedEarnings           decimal.Decimal     `json:"retained_earnings"`
	TotalLiabilitiesAndCapital decimal.Decimal     `json:"total_liabilities_and_capital"`
	Difference                 decimal.Decimal     `json:"difference"`
}

// BuildBalanceSheet aggregates closing balances into assets, liabilities, and capital sections.
func BuildBalanceSheet(accounts []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	capital := BalanceSheetSection{Label: "Capital"}
	retained := decimal.Zero

	for _, acc := range accounts {
		balance := acc.Closing()
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: balance}
		switch acc.Nature {
		case chart.NatureAssets:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(balance)
		case chart.NatureLiabilities:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(balance)
		case chart.NatureCapital:
			capital.Accounts = append(capital.Accounts, row)
			capital.Total = capital.Total.Add(balance)
		case chart.NatureIncome:
			retained = retained.Add(balance)
		case chart.NatureExpenses:
			retained = retained.Sub(balance)
		}
	}

	sort.Slice(assets.Accounts, func(i, j int) bool { return codeLess(assets.Accounts[i].Code, assets.Accounts[j].Code) })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return codeLess(liabilities.Accounts[i].Code, liabilities.Accounts[j].Code) })
	sort.Slice(capital.Accounts, func(i, j int) bool { return codeLess(capital.Accounts[i].Code, capital.Accounts[j].Code) })

	total := liabilities.Total.Add(capital.Total).Add(retained)
	return BalanceSheet{
		Assets:                     assets,
		Liabilities:                liabilities,
		Capital:                    capital,
		RetainedEarnings:           retained,
		TotalLiabilitiesAndCapital: total,
		Difference:                 assets.Total.Sub(total),
	}
}
