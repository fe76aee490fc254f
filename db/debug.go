package db

import (
	"database/sql"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// HistoryCLI opens the database at dbPath read-only and returns the latest
// readings of both kinds plus recent switch events.
func HistoryCLI(dbPath string, events int) (unloaded, loaded []model.Reading, switches []model.SwitchEvent, err error) {
	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, nil, nil, err
	}
	defer conn.Close()

	if unloaded, err = GetLatestReadings(conn, model.KindUnloaded); err != nil {
		return nil, nil, nil, err
	}
	if loaded, err = GetLatestReadings(conn, model.KindLoaded); err != nil {
		return nil, nil, nil, err
	}
	if switches, err = GetSwitchEvents(conn, events); err != nil {
		return nil, nil, nil, err
	}
	return unloaded, loaded, switches, nil
}

// BatteryHistoryCLI returns up to limit readings for one battery.
func BatteryHistoryCLI(dbPath string, battery model.BatteryID, limit int) ([]model.Reading, error) {
	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return GetReadingHistory(conn, battery, limit)
}
