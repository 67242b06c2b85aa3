package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gridpulse/evsim/core/model"
)

func sampleSessions() []model.ChargingSession {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []model.ChargingSession{
		{
			ID: "s1", UserID: "u1", ChargerID: "c1", StationID: "st1",
			StartTime: start, EndTime: start.Add(30 * time.Minute),
			DurationMinutes: 30, InitialSoC: 40, FinalSoC: 80,
			EnergyKWh: 24.5, Revenue: 25.0,
			Reason: model.TargetReached, Manual: true,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSessions()); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want header plus one session", len(records))
	}
	if len(records[0]) != 13 {
		t.Fatalf("columns = %d, want 13", len(records[0]))
	}
	row := records[1]
	if row[0] != "s1" || row[1] != "u1" || row[12] != "true" {
		t.Fatalf("row = %v", row)
	}
	if !strings.HasPrefix(row[4], "2025-06-01T12:00:00") {
		t.Fatalf("start time = %q", row[4])
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSessions()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var back []model.ChargingSession
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 1 || back[0].ID != "s1" || back[0].EnergyKWh != 24.5 {
		t.Fatalf("round trip = %+v", back)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Fatalf("lines = %d, want header only", lines)
	}
}
