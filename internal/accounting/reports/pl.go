package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
)

// ProfitAndLossAccount represents an income or expense ledger summary.
type ProfitAndLossAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string                 `json:"label"`
	Accounts []ProfitAndLossAccount `json:"accounts"`
	Total    decimal.Decimal        `json:"total"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	Income    ProfitAndLossSection `json:"income"`
	Expenses  ProfitAndLossSection `json:"expenses"`
	NetIncome decimal.Decimal      `json:"net_income"`
}

// BuildProfitAndLoss aggregates the period movement of income and expense
// ledgers.
func BuildProfitAndLoss(accounts []AccountBalance) ProfitAndLoss {
	income := ProfitAndLossSection{Label: "Income"}
	expenses := ProfitAndLossSection{Label: "Expenses"}

	for _, acc := range accounts {
		row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Closing().Sub(acc.Opening)}
		switch acc.Nature {
		case chart.NatureIncome:
			income.Accounts = append(income.Accounts, row)
			income.Total = income.Total.Add(row.Amount)
		case chart.NatureExpenses:
			expenses.Accounts = append(expenses.Accounts, row)
			expenses.Total = expenses.Total.Add(row.Amount)
		}
	}

	sort.Slice(income.Accounts, func(i, j int) bool { return codeLess(income.Accounts[i].Code, income.Accounts[j].Code) })
	sort.Slice(expenses.Accounts, func(i, j int) bool { return codeLess(expenses.Accounts[i].Code, expenses.Accounts[j].Code) })

	return ProfitAndLoss{
		Income:    income,
		Expenses:  expenses,
		NetIncome: income.Total.Sub(expenses.Total),
	}
}
