// Package store keeps the last known battery voltages across restarts.
// Charging flags are never restored; the array always starts disconnected.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() ([model.BatteryCount]model.BatteryState, error) {
	var snap [model.BatteryCount]model.BatteryState

	file, err := os.Open(s.path)
	if err != nil {
		return snap, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return snap, err
	}
	for i := range snap {
		snap[i].IsCharging = false
	}
	return snap, nil
}

func (s *Store) Save(snap [model.BatteryCount]model.BatteryState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		return err
	}
	file.Sync()
	file.Close()

	return os.Rename(tmpPath, s.path)
}
