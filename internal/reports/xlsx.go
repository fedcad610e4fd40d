package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"timeclock/internal/civiltime"
	"timeclock/internal/ledger"
)

const (
	SummarySheet = "Summary"
	RecordsSheet = "Records"
)

var (
	summaryHeader = []any{"User ID", "Username", "Full Name", "Location", "Total Hours", "Records", "First Clock In", "Last Clock Out"}
	recordsHeader = []any{"Record ID", "Username", "Location", "Clock In", "Clock Out", "Break (min)", "Hours", "Notes"}
)

// WriteXLSX writes s as a workbook with one summary row per user and
// location and one row per session.
func WriteXLSX(w io.Writer, s Summary, clock civiltime.Clock) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(RecordsSheet); err != nil {
		return fmt.Errorf("create records sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summaryRows := [][]any{summaryHeader}
	recordRows := [][]any{recordsHeader}
	for _, u := range s.Users {
		for _, name := range u.LocationNames() {
			loc := u.Locations[name]
			summaryRows = append(summaryRows, []any{
				u.UserID, u.Username, u.FullName, name,
				ledger.Round2(loc.TotalHours), loc.RecordCount,
				clock.Format(loc.FirstClockIn), lastOut(clock, loc.Group),
			})
			for _, r := range loc.Records {
				recordRows = append(recordRows, []any{
					r.ID, u.Username, name,
					clock.Format(r.ClockIn), clock.FormatPtr(r.ClockOut),
					r.BreakMinutes, ledger.Round2(r.Hours), r.Notes,
				})
			}
		}
	}
	summaryRows = append(summaryRows, []any{"", "", "", "Grand Total", ledger.Round2(s.GrandTotal), s.TotalRecords})

	for sheet, rows := range map[string][][]any{SummarySheet: summaryRows, RecordsSheet: recordRows} {
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
			}
		}
		end, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := f.SetCellStyle(sheet, "A1", end, bold); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
		if err := f.SetColWidth(sheet, "A", "H", 18); err != nil {
			return fmt.Errorf("size %s columns: %w", sheet, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
