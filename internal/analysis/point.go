package analysis

import (
	"math"

	"github.com/helios-data/yield.report/internal/plant"
)

// nearZero guards divisions against zero and effectively-zero denominators.
const nearZero = 1e-9

// Point is one tracker's measurement at one effective timestamp, together
// with its derived metrics and the analysis outputs of the current run.
//
// Name and SourceTimestamp identify the point for the lifetime of a run and
// must not change after construction. Derived metrics are computed once in
// NewPoint; any derivation with a missing input or an effectively-zero
// denominator yields NaN instead of failing. The analysis output fields
// (ClusterID, Outlier, PerformanceLabel) are owned by the Service and only
// written between preparation and result publication.
type Point struct {
	Name            string `json:"name"`
	SourceTimestamp string `json:"source_timestamp"`

	PowerKW         float64 `json:"power_kw"`
	VoltageV        float64 `json:"voltage_v"`
	NominalPowerKWp float64 `json:"nominal_power_kwp"`
	Orientation     string  `json:"orientation"`
	StringCount     int     `json:"string_count"`

	SpecificPower     float64 `json:"specific_power"`
	CurrentPerStringA float64 `json:"current_per_string_a"`
	ResistanceOhm     float64 `json:"resistance_ohm"`

	ModuleDataAvailable bool    `json:"module_data_available"`
	ModulesPerString    float64 `json:"modules_per_string"`
	VoltageDeviationV   float64 `json:"voltage_deviation_v"`
	CurrentDeviationA   float64 `json:"current_deviation_a"`
	PowerDeviationKW    float64 `json:"power_deviation_kw"`

	ClusterID        int    `json:"cluster_id"`
	Outlier          bool   `json:"outlier"`
	PerformanceLabel string `json:"performance_label"`
}

// NewPoint builds a point from raw measurements and static metadata,
// computing all derived metrics. The module parameter may be nil.
func NewPoint(name string, powerKW, voltageV float64, tracker plant.TrackerInfo, module *plant.ModuleInfo, sourceTimestamp string) *Point {
	p := &Point{
		Name:            name,
		SourceTimestamp: sourceTimestamp,
		PowerKW:         powerKW,
		VoltageV:        voltageV,
		NominalPowerKWp: tracker.NominalPowerKWp,
		Orientation:     tracker.Orientation,
		StringCount:     tracker.StringCount,
		ClusterID:       ClusterNoise,

		SpecificPower:     math.NaN(),
		CurrentPerStringA: math.NaN(),
		ResistanceOhm:     math.NaN(),
		ModulesPerString:  math.NaN(),
		VoltageDeviationV: math.NaN(),
		CurrentDeviationA: math.NaN(),
		PowerDeviationKW:  math.NaN(),
	}
	if p.Orientation == "" {
		p.Orientation = "Unbekannt"
	}

	if !math.IsNaN(powerKW) && math.Abs(p.NominalPowerKWp) > nearZero {
		p.SpecificPower = powerKW / p.NominalPowerKWp
	}
	if !math.IsNaN(powerKW) && math.Abs(voltageV) > nearZero && p.StringCount > 0 {
		p.CurrentPerStringA = (powerKW * 1000.0) / voltageV / float64(p.StringCount)
	}
	if !math.IsNaN(voltageV) && !math.IsNaN(p.CurrentPerStringA) && math.Abs(p.CurrentPerStringA) > nearZero {
		p.ResistanceOhm = voltageV / p.CurrentPerStringA
	}

	if module != nil {
		p.ModuleDataAvailable = true
		if !math.IsNaN(p.NominalPowerKWp) && module.NominalPowerKWp > nearZero && p.StringCount > 0 {
			p.ModulesPerString = p.NominalPowerKWp / module.NominalPowerKWp / float64(p.StringCount)
		}
		moduleVoltage := math.NaN()
		if !math.IsNaN(voltageV) && !math.IsNaN(p.ModulesPerString) && math.Abs(p.ModulesPerString) > nearZero {
			moduleVoltage = voltageV / p.ModulesPerString
		}
		if !math.IsNaN(moduleVoltage) {
			p.VoltageDeviationV = moduleVoltage - module.MPPVoltageV
		}
		if !math.IsNaN(p.CurrentPerStringA) {
			p.CurrentDeviationA = p.CurrentPerStringA - module.MPPCurrentA
		}
		if !math.IsNaN(p.CurrentPerStringA) && !math.IsNaN(moduleVoltage) {
			modulePower := (p.CurrentPerStringA * moduleVoltage) / 1000.0
			p.PowerDeviationKW = modulePower - module.MPPPowerKW
		}
	}

	return p
}

// resetAnalysisOutputs restores the default analysis output state.
func (p *Point) resetAnalysisOutputs() {
	p.ClusterID = ClusterNoise
	p.Outlier = false
	p.PerformanceLabel = ""
}
