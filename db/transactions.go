package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// InsertReadings stores a sweep's readings atomically.
func InsertReadings(db *sql.DB, readings []model.Reading) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if err := InsertReadingsWithTx(tx, readings); err != nil {
		RollbackTransaction(tx)
		return err
	}
	return CommitTransaction(tx)
}

func InsertReadingsWithTx(tx *sql.Tx, readings []model.Reading) error {
	stmt, err := tx.Prepare(`INSERT INTO measurements (battery_id, kind, raw_count, volts, display_volts, in_range, taken_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if !r.Battery.Valid() || !r.Kind.Valid() {
			return fmt.Errorf("invalid reading for %s (%q)", r.Battery, r.Kind)
		}
		_, err := stmt.Exec(int(r.Battery), string(r.Kind), r.Raw, r.Volts, r.Display, r.InRange, r.TakenAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert reading for %s: %w", r.Battery, err)
		}
	}
	return nil
}

func InsertSwitchEvent(db *sql.DB, ev model.SwitchEvent) error {
	var errText sql.NullString
	if ev.Err != "" {
		errText = sql.NullString{String: ev.Err, Valid: true}
	}
	_, err := db.Exec(`INSERT INTO switch_events (from_case, to_case, result_case, error, at, duration_us) VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.From), string(ev.To), string(ev.Result), errText, ev.At.UTC().Format(timeLayout), ev.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("insert switch event: %w", err)
	}
	return nil
}

// PruneBefore deletes history older than cutoff and returns the number of
// measurement rows removed.
func PruneBefore(db *sql.DB, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timeLayout)
	tx, err := StartTransaction(db)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`DELETE FROM measurements WHERE taken_at < ?`, ts)
	if err != nil {
		RollbackTransaction(tx)
		return 0, fmt.Errorf("prune measurements: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM switch_events WHERE at < ?`, ts); err != nil {
		RollbackTransaction(tx)
		return 0, fmt.Errorf("prune switch events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, CommitTransaction(tx)
}
