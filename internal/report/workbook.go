// Package report exports renewal records as an agent worklist workbook.
package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/tcdsagency/renewals/internal/model"
)

const (
	worklistSheet = "Renewals"
	findingsSheet = "Findings"

	moneyFormat   = "#,##0.00"
	percentFormat = "0.0"
	dateLayout    = "2006-01-02"
)

// WorklistHeader is the first row of the worklist sheet.
var WorklistHeader = []string{
	"Policy Number", "Carrier", "Line", "Effective Date", "Status", "Recommendation",
	"Current Premium", "Renewal Premium", "Change", "Change %", "Headline",
	"Critical", "Warnings", "Decision", "Decided By", "Record ID",
}

// FindingsHeader is the first row of the findings sheet.
var FindingsHeader = []string{"Policy Number", "Rule", "Severity", "Category", "Field", "Message", "Record ID"}

// WriteWorkbook writes one worklist row per record plus one findings row per
// check result.
func WriteWorkbook(w io.Writer, records []model.Record) error {
	f := xlsx.NewFile()
	worklist, err := f.AddSheet(worklistSheet)
	if err != nil {
		return eris.Wrap(err, "report: add worklist sheet")
	}
	findings, err := f.AddSheet(findingsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add findings sheet")
	}

	addStrings(worklist.AddRow(), WorklistHeader...)
	addStrings(findings.AddRow(), FindingsHeader...)

	for i := range records {
		rec := &records[i]
		row := worklist.AddRow()
		addStrings(row,
			rec.PolicyNumber,
			rec.CarrierName,
			string(rec.LineOfBusiness),
			formatDate(rec.RenewalEffectiveDate),
			string(rec.Status),
			string(rec.Recommendation),
		)
		addMoney(row, rec.CurrentPremium)
		addMoney(row, rec.RenewalPremium)
		addMoney(row, rec.PremiumChangeAmount)
		if rec.PremiumChangePercent != nil {
			row.AddCell().SetFloatWithFormat(*rec.PremiumChangePercent, percentFormat)
		} else {
			row.AddCell()
		}

		headline := ""
		critical, warnings := 0, 0
		if rec.ComparisonSummary != nil {
			headline = rec.ComparisonSummary.Headline
		}
		if rec.CheckSummary != nil {
			critical, warnings = rec.CheckSummary.CriticalCount, rec.CheckSummary.WarningCount
		}
		addStrings(row, headline)
		row.AddCell().SetInt(critical)
		row.AddCell().SetInt(warnings)
		addStrings(row, string(rec.AgentDecision), rec.AgentDecisionBy, rec.ID)

		for _, cr := range rec.CheckResults {
			addStrings(findings.AddRow(),
				rec.PolicyNumber, cr.RuleID, string(cr.Severity), cr.Category, cr.AffectedField, cr.Message, rec.ID)
		}
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addMoney(row *xlsx.Row, d *decimal.Decimal) {
	cell := row.AddCell()
	if d == nil {
		return
	}
	cell.SetFloatWithFormat(d.Round(2).InexactFloat64(), moneyFormat)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
