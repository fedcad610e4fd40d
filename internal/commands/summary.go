package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"timeclock/internal/reports"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	totalStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("10"))
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the hour summary for a date range",
	Long: `Print hours worked per user and location for a date range.

Examples:
  timeclock summary --start 2024-03-01 --end 2024-03-15
  timeclock summary --start 2024-03-01 --end 2024-03-15 --location "Main Clinic" --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		format, _ := flags.GetString("format")
		switch format {
		case formatTable, formatYAML, formatJSON:
		default:
			return fmt.Errorf("unknown format %q, expected table, yaml or json", format)
		}

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		q := reports.Query{}
		q.StartDate, _ = flags.GetString("start")
		q.EndDate, _ = flags.GetString("end")
		q.Location, _ = flags.GetString("location")

		sum, err := reports.NewAggregator(e.db, e.clock, e.logger).Summarize(cmd.Context(), q)
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), sum.View(e.clock), format)
	},
}

func init() {
	summaryCmd.Flags().String("start", "", "First day, YYYY-MM-DD (required)")
	summaryCmd.Flags().String("end", "", "Last day, YYYY-MM-DD (required)")
	summaryCmd.Flags().String("location", "", "Only include this location")
	summaryCmd.Flags().String("format", formatTable, "Output format: table, yaml or json")
	_ = summaryCmd.MarkFlagRequired("start")
	_ = summaryCmd.MarkFlagRequired("end")
}

func writeSummary(w io.Writer, v reports.SummaryView, format string) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	title := fmt.Sprintf("Hours %s to %s", v.StartDate, v.EndDate)
	if v.Location != "" {
		title += " at " + v.Location
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("User", "Full Name", "Location", "Hours", "Records", "First In", "Last Out")

	totalRow := 0
	for _, u := range v.Users {
		for _, name := range locationNames(u) {
			loc := u.Locations[name]
			t.Row(u.Username, u.FullName, name, formatHours(loc.TotalHours),
				strconv.Itoa(loc.RecordCount), loc.FirstClockIn, loc.LastClockOut)
			totalRow++
		}
	}
	t.Row("", "", "Grand Total", formatHours(v.GrandTotal), strconv.Itoa(v.TotalRecords), "", "")

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row == totalRow:
			return totalStyle
		default:
			return cellStyle
		}
	})

	_, err := fmt.Fprintln(w, titleStyle.Render(title)+"\n"+t.String())
	return err
}

func locationNames(u reports.UserView) []string {
	names := make([]string, 0, len(u.Locations))
	for name := range u.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}
