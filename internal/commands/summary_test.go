package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"timeclock/internal/reports"
)

func sampleView() reports.SummaryView {
	return reports.SummaryView{
		StartDate:    "2024-03-04",
		EndDate:      "2024-03-05",
		GrandTotal:   8.5,
		TotalRecords: 2,
		Users: []reports.UserView{{
			UserID:     1,
			Username:   "alice",
			FullName:   "Alice Smith",
			TotalHours: 8.5,
			Locations: map[string]reports.LocationView{
				"Main Clinic": {TotalHours: 5.5, RecordCount: 1, FirstClockIn: "2024-03-04 09:00:00", LastClockOut: "2024-03-04 15:00:00"},
				"Annex":       {TotalHours: 3, RecordCount: 1, FirstClockIn: "2024-03-05 09:00:00", LastClockOut: reports.StillClockedIn, StillClockedIn: true},
			},
		}},
	}
}

func TestWriteSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSummary(&buf, sampleView(), formatTable); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Hours 2024-03-04 to 2024-03-05", "alice", "Main Clinic", "5.50", "Grand Total", "8.50", reports.StillClockedIn} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Annex") > strings.Index(out, "Main Clinic") {
		t.Errorf("expected locations sorted by name")
	}
}

func TestWriteSummaryStructured(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSummary(&buf, sampleView(), formatYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var y map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &y); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if y["grand_total_hours"] != 8.5 {
		t.Fatalf("unexpected grand total %v", y["grand_total_hours"])
	}

	buf.Reset()
	if err := writeSummary(&buf, sampleView(), formatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var j reports.SummaryView
	if err := json.Unmarshal(buf.Bytes(), &j); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if j.Users[0].Locations["Annex"].LastClockOut != reports.StillClockedIn {
		t.Fatalf("unexpected annex %+v", j.Users[0].Locations["Annex"])
	}
}
