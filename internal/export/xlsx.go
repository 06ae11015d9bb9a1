// Package export writes the loan book to an xlsx workbook for back-office review.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/loan-desk/internal/model"
)

// Sheet names, in workbook order.
const (
	SheetRequests = "Requests"
	SheetQuotes   = "Quotes"
	SheetAccounts = "Accounts"
)

// Workbook builds an in-memory workbook with one sheet per collection.
func Workbook(doc *model.Document) (*xlsx.File, error) {
	f := xlsx.NewFile()

	requests, err := f.AddSheet(SheetRequests)
	if err != nil {
		return nil, eris.Wrap(err, "export: add requests sheet")
	}
	header := append([]string{"request_id", "user_id", "status"}, model.FeatureNames[:]...)
	addHeader(requests, header)
	for _, req := range doc.LoanRequests {
		row := requests.AddRow()
		row.AddCell().SetInt64(req.RequestID)
		row.AddCell().SetInt64(req.UserID)
		row.AddCell().SetString(string(req.Status))
		for _, name := range model.FeatureNames {
			raw := req.Features.Get(name)
			if v, err := model.ParseInteger(raw); err == nil {
				row.AddCell().SetInt64(v)
				continue
			}
			row.AddCell().SetString(strings.Trim(string(raw), `"`))
		}
	}

	quotes, err := f.AddSheet(SheetQuotes)
	if err != nil {
		return nil, eris.Wrap(err, "export: add quotes sheet")
	}
	addHeader(quotes, []string{"quote_id", "request_id", "approved_amount", "interest_rate", "emi_amount", "term_months", "total_interest", "status"})
	for _, q := range doc.LoanQuotes {
		row := quotes.AddRow()
		row.AddCell().SetInt64(q.QuoteID)
		row.AddCell().SetInt64(q.RequestID)
		row.AddCell().SetInt64(q.ApprovedAmount)
		row.AddCell().SetFloat(q.InterestRate)
		row.AddCell().SetFloat(q.EMIAmount)
		row.AddCell().SetInt64(q.TermMonths)
		row.AddCell().SetFloat(q.TotalInterest)
		row.AddCell().SetString(string(q.Status))
	}

	accounts, err := f.AddSheet(SheetAccounts)
	if err != nil {
		return nil, eris.Wrap(err, "export: add accounts sheet")
	}
	addHeader(accounts, []string{"account_id", "user_id", "original_request_id", "principal_balance", "start_date", "status"})
	for _, a := range doc.LoanAccounts {
		row := accounts.AddRow()
		row.AddCell().SetInt64(a.AccountID)
		row.AddCell().SetInt64(a.UserID)
		row.AddCell().SetInt64(a.OriginalRequestID)
		row.AddCell().SetInt64(a.PrincipalBalance)
		row.AddCell().SetString(a.StartDate)
		row.AddCell().SetString(a.Status)
	}

	return f, nil
}

// WriteFile builds the workbook for doc and saves it to path.
func WriteFile(doc *model.Document, path string) error {
	f, err := Workbook(doc)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
