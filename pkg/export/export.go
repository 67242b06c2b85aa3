// Package export serializes simulation results for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/gridpulse/evsim/core/model"
)

// WriteJSON writes the completed sessions to w in JSON format.
func WriteJSON(w io.Writer, sessions []model.ChargingSession) error {
	enc := json.NewEncoder(w)
	return enc.Encode(sessions)
}

// WriteCSV writes the completed sessions to w as CSV with a header row.
func WriteCSV(w io.Writer, sessions []model.ChargingSession) error {
	cw := csv.NewWriter(w)
	header := []string{
		"session_id", "user_id", "charger_id", "station_id",
		"start", "end", "duration_min", "energy_kwh", "revenue",
		"initial_soc", "final_soc", "reason", "manual",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range sessions {
		rec := []string{
			s.ID,
			s.UserID,
			s.ChargerID,
			s.StationID,
			s.StartTime.Format(time.RFC3339),
			s.EndTime.Format(time.RFC3339),
			strconv.FormatFloat(s.DurationMinutes, 'f', 1, 64),
			strconv.FormatFloat(s.EnergyKWh, 'f', 3, 64),
			strconv.FormatFloat(s.Revenue, 'f', 3, 64),
			strconv.FormatFloat(s.InitialSoC, 'f', 1, 64),
			strconv.FormatFloat(s.FinalSoC, 'f', 1, 64),
			s.Reason.String(),
			strconv.FormatBool(s.Manual),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
