// Package plant holds the static plant description and the measurement
// dataset consumed by the analysis pipeline. A Data value is an immutable
// snapshot: an ordered list of timestamp labels, one value row per
// timestamp keyed by "<tracker>/<metric>", tracker metadata, and optional
// module datasheet values.
package plant

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TimestampLayout is the label format used by plant data exports.
const TimestampLayout = "02.01.2006 15:04"

// Metric name suffixes used in row keys.
const (
	MetricPowerKW  = "DC-Leistung(kW)"
	MetricVoltageV = "DC-Spannung(V)"
)

// TrackerInfo is the static description of one PV tracker.
type TrackerInfo struct {
	Name            string  `json:"name"`
	NominalPowerKWp float64 `json:"nominal_power_kwp"`
	Orientation     string  `json:"orientation"`
	StringCount     int     `json:"string_count"`
}

// Validate checks the field constraints for tracker metadata.
func (t TrackerInfo) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tracker name must not be empty")
	}
	if t.NominalPowerKWp < 0 {
		return fmt.Errorf("tracker %q: nominal power must be non-negative, got %f", t.Name, t.NominalPowerKWp)
	}
	if t.Orientation == "" {
		return fmt.Errorf("tracker %q: orientation must not be empty", t.Name)
	}
	if t.StringCount <= 0 {
		return fmt.Errorf("tracker %q: string count must be positive, got %d", t.Name, t.StringCount)
	}
	return nil
}

// ModuleInfo carries the module datasheet values (STC nominal power and the
// maximum power point figures). All values are non-negative.
type ModuleInfo struct {
	NominalPowerKWp float64 `json:"nominal_power_kwp"`
	MPPPowerKW      float64 `json:"mpp_power_kw"`
	MPPVoltageV     float64 `json:"mpp_voltage_v"`
	MPPCurrentA     float64 `json:"mpp_current_a"`
}

// Validate checks the field constraints for module metadata.
func (m ModuleInfo) Validate() error {
	if m.NominalPowerKWp < 0 || m.MPPPowerKW < 0 || m.MPPVoltageV < 0 || m.MPPCurrentA < 0 {
		return fmt.Errorf("module parameters must be non-negative: Pnenn=%.3f, Pmpp=%.3f, Vmpp=%.1f, Impp=%.2f",
			m.NominalPowerKWp, m.MPPPowerKW, m.MPPVoltageV, m.MPPCurrentA)
	}
	return nil
}

// Data is an immutable snapshot of a plant dataset.
type Data struct {
	timestamps []string
	tsIndex    map[string]int
	rows       []map[string]float64
	trackers   map[string]TrackerInfo
	module     *ModuleInfo
}

// NewData builds a dataset snapshot. Rows must be aligned with timestamps
// (one value row per timestamp label). Tracker and module metadata are
// validated; the input collections are copied.
func NewData(timestamps []string, rows []map[string]float64, trackers []TrackerInfo, module *ModuleInfo) (*Data, error) {
	if len(rows) != len(timestamps) {
		return nil, fmt.Errorf("row count %d does not match timestamp count %d", len(rows), len(timestamps))
	}
	d := &Data{
		timestamps: append([]string(nil), timestamps...),
		tsIndex:    make(map[string]int, len(timestamps)),
		rows:       make([]map[string]float64, len(rows)),
		trackers:   make(map[string]TrackerInfo, len(trackers)),
	}
	for i, ts := range d.timestamps {
		d.tsIndex[ts] = i
	}
	for i, row := range rows {
		copied := make(map[string]float64, len(row))
		for k, v := range row {
			copied[k] = v
		}
		d.rows[i] = copied
	}
	for _, t := range trackers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := d.trackers[t.Name]; ok {
			return nil, fmt.Errorf("duplicate tracker %q", t.Name)
		}
		d.trackers[t.Name] = t
	}
	if module != nil {
		if err := module.Validate(); err != nil {
			return nil, err
		}
		m := *module
		d.module = &m
	}
	return d, nil
}

// Timestamps returns the ordered timestamp labels.
func (d *Data) Timestamps() []string {
	return append([]string(nil), d.timestamps...)
}

// TimestampIndex returns the position of a label, or -1 if unknown.
func (d *Data) TimestampIndex(ts string) int {
	if i, ok := d.tsIndex[ts]; ok {
		return i
	}
	return -1
}

// HasTimestamp reports whether the label exists in the dataset.
func (d *Data) HasTimestamp(ts string) bool {
	_, ok := d.tsIndex[ts]
	return ok
}

// Value looks up one metric for one tracker at a timestamp label.
// Missing timestamps or missing values yield NaN.
func (d *Data) Value(ts, tracker, metric string) float64 {
	i := d.TimestampIndex(ts)
	if i < 0 {
		return math.NaN()
	}
	return d.ValueAt(i, tracker, metric)
}

// ValueAt looks up one metric for one tracker at a timestamp index.
// Some exports carry a stray space between the tracker name and the
// metric separator; the lookup tolerates both spellings.
func (d *Data) ValueAt(i int, tracker, metric string) float64 {
	if i < 0 || i >= len(d.rows) {
		return math.NaN()
	}
	row := d.rows[i]
	if v, ok := row[tracker+"/"+metric]; ok {
		return v
	}
	if v, ok := row[tracker+" /"+metric]; ok {
		return v
	}
	return math.NaN()
}

// Tracker returns the metadata for a tracker name.
func (d *Data) Tracker(name string) (TrackerInfo, bool) {
	t, ok := d.trackers[name]
	return t, ok
}

// TrackerNames returns all tracker names in lexical order.
func (d *Data) TrackerNames() []string {
	names := make([]string, 0, len(d.trackers))
	for name := range d.trackers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrackerCount returns the number of known trackers.
func (d *Data) TrackerCount() int { return len(d.trackers) }

// Module returns the module datasheet values, or nil if absent.
func (d *Data) Module() *ModuleInfo {
	if d.module == nil {
		return nil
	}
	m := *d.module
	return &m
}

// HasModule reports whether module metadata is available.
func (d *Data) HasModule() bool { return d.module != nil }

// ParseTimestamp parses a timestamp label using TimestampLayout.
func ParseTimestamp(label string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp label %q: %w", label, err)
	}
	return t, nil
}
