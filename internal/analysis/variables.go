package analysis

import "fmt"

// FeatureExtractor maps a point to one of its numeric analysis variables.
type FeatureExtractor func(*Point) float64

// Analysis variable names addressable through the configuration surface.
const (
	VarSpecificPower    = "specific_power"
	VarDCVoltage        = "dc_voltage"
	VarDCPower          = "dc_power"
	VarCurrentPerString = "current_per_string"
	VarResistance       = "resistance"
)

var variableExtractors = map[string]FeatureExtractor{
	VarSpecificPower:    func(p *Point) float64 { return p.SpecificPower },
	VarDCVoltage:        func(p *Point) float64 { return p.VoltageV },
	VarDCPower:          func(p *Point) float64 { return p.PowerKW },
	VarCurrentPerString: func(p *Point) float64 { return p.CurrentPerStringA },
	VarResistance:       func(p *Point) float64 { return p.ResistanceOhm },
}

// Variables returns the selectable analysis variable names.
func Variables() []string {
	return []string{VarSpecificPower, VarDCVoltage, VarDCPower, VarCurrentPerString, VarResistance}
}

// VariableByName resolves a variable name to its extractor.
func VariableByName(name string) (FeatureExtractor, error) {
	if f, ok := variableExtractors[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown analysis variable %q", name)
}
