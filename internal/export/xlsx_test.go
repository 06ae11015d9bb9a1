package export

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/loan-desk/internal/model"
)

func loanBook() *model.Document {
	doc := model.NewDocument()
	features := model.FeatureVector{
		Dependents: 2, Education: 1, Income: 500000, LoanAmount: 100000,
		LoanTerm: 12, CibilScore: 800, BankAssets: 50000,
	}.Raw()
	doc.LoanRequests = []model.LoanRequest{
		{RequestID: 1, UserID: 1, Features: features, Status: model.StatusDisbursed},
		{RequestID: 2, UserID: 1, Features: features, Status: model.StatusRequested},
	}
	doc.LoanRequests[1].Features.Income = json.RawMessage(`"n/a"`)
	doc.LoanQuotes = []model.LoanQuote{{
		QuoteID: 1, RequestID: 1, ApprovedAmount: 100000, InterestRate: 8.5,
		EMIAmount: 9041.67, Status: model.StatusOfferSent, TermMonths: 12, TotalInterest: 8500,
	}}
	doc.LoanAccounts = []model.LoanAccount{{
		AccountID: 1, UserID: 1, OriginalRequestID: 1, PrincipalBalance: 100000,
		StartDate: "2026-10-15", Status: model.AccountStatusActive,
	}}
	return doc
}

func rows(t *testing.T, sheet *xlsx.Sheet) [][]string {
	t.Helper()
	out := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		out = append(out, cells)
	}
	return out
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loans.xlsx")
	require.NoError(t, WriteFile(loanBook(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, SheetRequests, f.Sheets[0].Name)
	assert.Equal(t, SheetQuotes, f.Sheets[1].Name)
	assert.Equal(t, SheetAccounts, f.Sheets[2].Name)

	req := rows(t, f.Sheet[SheetRequests])
	require.Len(t, req, 3)
	assert.Equal(t, []string{"request_id", "user_id", "status", "dependents"}, req[0][:4])
	assert.Len(t, req[0], 3+model.FeatureCount)
	assert.Equal(t, "DISBURSED", req[1][2])
	assert.Equal(t, "500000", req[1][6])
	assert.Equal(t, "n/a", req[2][6])

	quotes := rows(t, f.Sheet[SheetQuotes])
	require.Len(t, quotes, 2)
	assert.Equal(t, "8.5", quotes[1][3])
	assert.Equal(t, "9041.67", quotes[1][4])

	accts := rows(t, f.Sheet[SheetAccounts])
	require.Len(t, accts, 2)
	assert.Equal(t, []string{"1", "1", "1", "100000", "2026-10-15", "ACTIVE"}, accts[1])
}

func TestWorkbook_Empty(t *testing.T) {
	f, err := Workbook(model.NewDocument())
	require.NoError(t, err)
	for _, name := range []string{SheetRequests, SheetQuotes, SheetAccounts} {
		sheet, ok := f.Sheet[name]
		require.True(t, ok, name)
		assert.Len(t, sheet.Rows, 1, "header only")
	}
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(loanBook(), filepath.Join(t.TempDir(), "missing", "dir", "loans.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: save")
}
