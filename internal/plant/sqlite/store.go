// Package sqlite persists plant measurements and tracker metadata in a
// SQLite database and reconstructs plant.Data snapshots from it.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/helios-data/yield.report/internal/monitoring"
	"github.com/helios-data/yield.report/internal/plant"
)

type Store struct {
	*sql.DB
}

// schema.sql contains the SQL statements for creating the measurement
// store schema: tracker metadata, module info, and the measurement rows.
//
//go:embed schema.sql
var schemaSQL string

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}

	monitoring.Logf("initialized measurement store schema at %s", path)
	return &Store{db}, nil
}

// InsertTracker stores or replaces tracker metadata.
func (s *Store) InsertTracker(t plant.TrackerInfo) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tracker: %w", err)
	}
	query := `
		INSERT INTO trackers (name, nominal_power_kwp, orientation, string_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			nominal_power_kwp = excluded.nominal_power_kwp,
			orientation = excluded.orientation,
			string_count = excluded.string_count
	`
	if _, err := s.Exec(query, t.Name, t.NominalPowerKWp, t.Orientation, t.StringCount); err != nil {
		return fmt.Errorf("failed to insert tracker %q: %w", t.Name, err)
	}
	return nil
}

// SetModuleInfo stores the module datasheet values, replacing any previous
// entry.
func (s *Store) SetModuleInfo(m plant.ModuleInfo) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid module info: %w", err)
	}
	query := `
		INSERT INTO module_info (id, nominal_power_kwp, mpp_power_kw, mpp_voltage_v, mpp_current_a)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nominal_power_kwp = excluded.nominal_power_kwp,
			mpp_power_kw = excluded.mpp_power_kw,
			mpp_voltage_v = excluded.mpp_voltage_v,
			mpp_current_a = excluded.mpp_current_a
	`
	if _, err := s.Exec(query, m.NominalPowerKWp, m.MPPPowerKW, m.MPPVoltageV, m.MPPCurrentA); err != nil {
		return fmt.Errorf("failed to set module info: %w", err)
	}
	return nil
}

// RecordMeasurement stores one metric value for a tracker at a timestamp
// label. NaN values are stored as NULL and come back as missing.
func (s *Store) RecordMeasurement(tsLabel, tracker, metric string, value float64) error {
	ts, err := plant.ParseTimestamp(tsLabel)
	if err != nil {
		return fmt.Errorf("invalid measurement timestamp: %w", err)
	}
	var stored any = value
	if math.IsNaN(value) {
		stored = nil
	}
	query := `
		INSERT INTO measurements (ts_unix, ts_label, tracker, metric, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ts_label, tracker, metric) DO UPDATE SET value = excluded.value
	`
	if _, err := s.Exec(query, ts.Unix(), tsLabel, tracker, metric, stored); err != nil {
		return fmt.Errorf("failed to record measurement: %w", err)
	}
	return nil
}

// ImportData writes a full dataset into the store inside one transaction.
func (s *Store) ImportData(ctx context.Context, data *plant.Data) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for _, name := range data.TrackerNames() {
		t, _ := data.Tracker(name)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trackers (name, nominal_power_kwp, orientation, string_count)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET
				nominal_power_kwp = excluded.nominal_power_kwp,
				orientation = excluded.orientation,
				string_count = excluded.string_count`,
			t.Name, t.NominalPowerKWp, t.Orientation, t.StringCount); err != nil {
			return fmt.Errorf("failed to import tracker %q: %w", name, err)
		}
	}
	if m := data.Module(); m != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO module_info (id, nominal_power_kwp, mpp_power_kw, mpp_voltage_v, mpp_current_a)
			 VALUES (1, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				nominal_power_kwp = excluded.nominal_power_kwp,
				mpp_power_kw = excluded.mpp_power_kw,
				mpp_voltage_v = excluded.mpp_voltage_v,
				mpp_current_a = excluded.mpp_current_a`,
			m.NominalPowerKWp, m.MPPPowerKW, m.MPPVoltageV, m.MPPCurrentA); err != nil {
			return fmt.Errorf("failed to import module info: %w", err)
		}
	}

	for i, label := range data.Timestamps() {
		ts, err := plant.ParseTimestamp(label)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q in dataset: %w", label, err)
		}
		for _, name := range data.TrackerNames() {
			for _, metric := range []string{plant.MetricPowerKW, plant.MetricVoltageV} {
				v := data.ValueAt(i, name, metric)
				if math.IsNaN(v) {
					continue
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO measurements (ts_unix, ts_label, tracker, metric, value)
					 VALUES (?, ?, ?, ?, ?)
					 ON CONFLICT(ts_label, tracker, metric) DO UPDATE SET value = excluded.value`,
					ts.Unix(), label, name, metric, v); err != nil {
					return fmt.Errorf("failed to import measurement: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}

// LoadData reconstructs a plant.Data snapshot from the store, with
// timestamps ordered chronologically.
func (s *Store) LoadData(ctx context.Context) (*plant.Data, error) {
	trackers, err := s.loadTrackers(ctx)
	if err != nil {
		return nil, err
	}
	module, err := s.loadModuleInfo(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, `
		SELECT ts_label, tracker, metric, value
		FROM measurements
		WHERE value IS NOT NULL
		ORDER BY ts_unix, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var timestamps []string
	var dataRows []map[string]float64
	rowIndex := map[string]int{}
	for rows.Next() {
		var label, tracker, metric string
		var value float64
		if err := rows.Scan(&label, &tracker, &metric, &value); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		idx, ok := rowIndex[label]
		if !ok {
			idx = len(timestamps)
			rowIndex[label] = idx
			timestamps = append(timestamps, label)
			dataRows = append(dataRows, map[string]float64{})
		}
		dataRows[idx][tracker+"/"+metric] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("measurement store holds no measurements")
	}

	data, err := plant.NewData(timestamps, dataRows, trackers, module)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble dataset: %w", err)
	}
	monitoring.Logf("loaded %d timestamps for %d trackers from measurement store",
		len(timestamps), len(trackers))
	return data, nil
}

func (s *Store) loadTrackers(ctx context.Context) ([]plant.TrackerInfo, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT name, nominal_power_kwp, orientation, string_count
		FROM trackers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trackers: %w", err)
	}
	defer rows.Close()

	var trackers []plant.TrackerInfo
	for rows.Next() {
		var t plant.TrackerInfo
		if err := rows.Scan(&t.Name, &t.NominalPowerKWp, &t.Orientation, &t.StringCount); err != nil {
			return nil, fmt.Errorf("failed to scan tracker: %w", err)
		}
		trackers = append(trackers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trackers: %w", err)
	}
	return trackers, nil
}

func (s *Store) loadModuleInfo(ctx context.Context) (*plant.ModuleInfo, error) {
	var m plant.ModuleInfo
	err := s.QueryRowContext(ctx, `
		SELECT nominal_power_kwp, mpp_power_kw, mpp_voltage_v, mpp_current_a
		FROM module_info WHERE id = 1
	`).Scan(&m.NominalPowerKWp, &m.MPPPowerKW, &m.MPPVoltageV, &m.MPPCurrentA)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query module info: %w", err)
	}
	return &m, nil
}
