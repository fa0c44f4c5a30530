package statement

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Statement"

func renderText(st *Statement, req *Request, generated time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STATEMENT OF ACCOUNT\n")
	fmt.Fprintf(&b, "Generated: %s UTC\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Period: %s to %s\n\n", req.StartDate, req.EndDate)

	fmt.Fprintf(&b, "Account Information:\n")
	for _, a := range st.AccountInfo {
		if a.LoanID != req.LoanID {
			continue
		}
		fmt.Fprintf(&b, "  Account Number: %s\n", a.AccountNumber)
		fmt.Fprintf(&b, "  Client: %s\n", a.ClientName)
		fmt.Fprintf(&b, "  Status: %s\n", a.AccountStatus)
		fmt.Fprintf(&b, "  Loan: %s, %s (total %s)\n", a.LoanDescription, models.FormatMoney(a.LoanAmount), models.FormatMoney(a.TotalAmount))
	}

	fmt.Fprintf(&b, "\nAccount Summary:\n")
	fmt.Fprintf(&b, "  Opening Balance:  %s\n", models.FormatMoney(st.Summary.OpeningBalance))
	fmt.Fprintf(&b, "  Total Payments:   %s\n", models.FormatMoney(st.Summary.TotalPayments))
	fmt.Fprintf(&b, "  Interest Charges: %s\n", models.FormatMoney(st.Summary.InterestCharges))
	fmt.Fprintf(&b, "  Fees Applied:     %s\n", models.FormatMoney(st.Summary.FeesApplied))
	fmt.Fprintf(&b, "  Current Balance:  %s\n", models.FormatMoney(st.Summary.CurrentBalance))

	fmt.Fprintf(&b, "\nTransactions:\n")
	if len(st.Transactions) == 0 {
		fmt.Fprintf(&b, "  No transactions in this period.\n")
		return b.String()
	}
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  Date\tReference\tDescription\tDebit\tCredit\tBalance")
	for _, t := range st.Transactions {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", t.Date, t.Reference, t.Description,
			models.FormatMoney(t.DebitAmount), models.FormatMoney(t.CreditAmount), models.FormatMoney(t.RunningBalance))
	}
	tw.Flush()
	return b.String()
}

func renderXLSX(st *Statement, req *Request) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	row := 1
	put := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheetName, cell, &values)
	}

	rows := [][]any{
		{"STATEMENT OF ACCOUNT"},
		{"Period", req.StartDate.String(), req.EndDate.String()},
		{},
	}
	for _, a := range st.AccountInfo {
		if a.LoanID == req.LoanID {
			rows = append(rows,
				[]any{"Account Number", a.AccountNumber},
				[]any{"Client", a.ClientName},
				[]any{"Status", string(a.AccountStatus)},
			)
		}
	}
	rows = append(rows,
		[]any{},
		[]any{"Opening Balance", st.Summary.OpeningBalance.InexactFloat64()},
		[]any{"Total Payments", st.Summary.TotalPayments.InexactFloat64()},
		[]any{"Interest Charges", st.Summary.InterestCharges.InexactFloat64()},
		[]any{"Fees Applied", st.Summary.FeesApplied.InexactFloat64()},
		[]any{"Current Balance", st.Summary.CurrentBalance.InexactFloat64()},
		[]any{},
		[]any{"Date", "Reference", "Description", "Type", "Debit", "Credit", "Running Balance"},
	)
	for _, r := range rows {
		if err := put(r...); err != nil {
			return nil, err
		}
	}
	for _, t := range st.Transactions {
		err := put(t.Date.String(), t.Reference, t.Description, t.Type,
			t.DebitAmount.InexactFloat64(), t.CreditAmount.InexactFloat64(), t.RunningBalance.InexactFloat64())
		if err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
