package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

const readingColumns = `battery_id, kind, raw_count, volts, display_volts, in_range, taken_at`

// GetLatestReadings returns the newest reading of the given kind for each
// battery that has one, ordered by battery.
func GetLatestReadings(db *sql.DB, kind model.MeasurementKind) ([]model.Reading, error) {
	rows, err := db.Query(`
		SELECT `+readingColumns+` FROM measurements m
		WHERE kind = ? AND id = (
			SELECT id FROM measurements
			WHERE battery_id = m.battery_id AND kind = m.kind
			ORDER BY taken_at DESC, id DESC LIMIT 1
		)
		ORDER BY battery_id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	return scanReadings(rows)
}

// GetReadingHistory returns up to limit readings for one battery, newest first.
func GetReadingHistory(db *sql.DB, battery model.BatteryID, limit int) ([]model.Reading, error) {
	rows, err := db.Query(`SELECT `+readingColumns+` FROM measurements WHERE battery_id = ? ORDER BY taken_at DESC, id DESC LIMIT ?`,
		int(battery), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", battery, err)
	}
	return scanReadings(rows)
}

// GetSwitchEvents returns up to limit switch events, newest first.
func GetSwitchEvents(db *sql.DB, limit int) ([]model.SwitchEvent, error) {
	rows, err := db.Query(`SELECT from_case, to_case, result_case, error, at, duration_us FROM switch_events ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query switch events: %w", err)
	}
	defer rows.Close()

	var events []model.SwitchEvent
	for rows.Next() {
		var (
			ev       model.SwitchEvent
			errText  sql.NullString
			at       string
			duration int64
		)
		if err := rows.Scan(&ev.From, &ev.To, &ev.Result, &errText, &at, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan switch event: %w", err)
		}
		ev.Err = errText.String
		ev.At, _ = time.Parse(timeLayout, at)
		ev.Duration = time.Duration(duration) * time.Microsecond
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanReadings(rows *sql.Rows) ([]model.Reading, error) {
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		var (
			r       model.Reading
			battery int
			kind    string
			takenAt string
		)
		if err := rows.Scan(&battery, &kind, &r.Raw, &r.Volts, &r.Display, &r.InRange, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Battery = model.BatteryID(battery)
		r.Kind = model.MeasurementKind(kind)
		r.TakenAt, _ = time.Parse(timeLayout, takenAt)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
