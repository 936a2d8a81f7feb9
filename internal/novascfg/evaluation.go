package novascfg

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// EvaluationDocument mirrors spec §6's Evaluation document: per-instrument
// ordered fit windows, each with its own references and validity window,
// plus the instrument's dark-correction rules.
type EvaluationDocument struct {
	XMLName     xml.Name             `xml:"Evaluation"`
	Instruments []InstrumentEvalConf `xml:"instrument"`
}

// InstrumentEvalConf is one <instrument> block inside the Evaluation
// document.
type InstrumentEvalConf struct {
	Serial string `xml:"serial,attr"`

	FitWindows []FitWindowXML `xml:"fitWindow"`
	DarkRules  []DarkRuleXML  `xml:"dark"`

	// FraunhoferReferencePath is the default high-resolution solar
	// reference a fit window inherits when it omits its own (spec §6
	// "Fraunhofer reference path").
	FraunhoferReferencePath string `xml:"fraunhoferReference"`

	// CalibrationOverride names an instrument-calibration file that
	// replaces the one named in the Setup document (spec §6
	// "instrument-calibration override").
	CalibrationOverride string `xml:"calibrationOverride"`
}

// FitWindowXML is one ordered, time-bounded fit configuration (spec §6
// "per-instrument ordered fit windows with validity windows").
type FitWindowXML struct {
	Name      string `xml:"name,attr"`
	ValidFrom string `xml:"validFrom,attr"`
	ValidTo   string `xml:"validTo,attr"`

	FitLow    int `xml:"fitLow,attr"`
	FitHigh   int `xml:"fitHigh,attr"`
	PolyOrder int `xml:"polyOrder,attr"`

	References []ReferenceXML `xml:"reference"`

	FraunhoferReferencePath string `xml:"fraunhoferReference"`
	FindOptimalShift        bool   `xml:"findOptimalShift,attr"`
	SkyShift                bool   `xml:"skyShift,attr"`

	MinSaturation  float64 `xml:"minSaturation,attr"`
	ChiSquareLimit float64 `xml:"chiSquareLimit,attr"`
}

// From and To parse the window's validity bounds.
func (w FitWindowXML) From() (time.Time, error) { return parseConfigTime(w.ValidFrom) }
func (w FitWindowXML) To() (time.Time, error)    { return parseConfigTime(w.ValidTo) }

// ReferenceXML is one <reference> inside a fit window (spec §6
// "per-window references with path/species/shift/squeeze/column options").
type ReferenceXML struct {
	Path    string `xml:"path,attr"`
	Species string `xml:"species,attr"`

	ShiftOption string  `xml:"shiftOption,attr"` // free|fixed|linked|bounded
	ShiftValue  float64 `xml:"shiftValue,attr"`
	ShiftLink   string  `xml:"shiftLink,attr"`

	SqueezeOption string  `xml:"squeezeOption,attr"`
	SqueezeValue  float64 `xml:"squeezeValue,attr"`
	SqueezeLink   string  `xml:"squeezeLink,attr"`

	ColumnOption string  `xml:"columnOption,attr"`
	ColumnValue  float64 `xml:"columnValue,attr"`

	IsMainSpecies bool `xml:"mainSpecies,attr"`
}

// DarkRuleXML names a dark-resolution policy in effect over a validity
// window (spec §6 "dark-correction rules with validity windows").
type DarkRuleXML struct {
	ValidFrom string `xml:"validFrom,attr"`
	ValidTo   string `xml:"validTo,attr"`

	DarkOption        string `xml:"darkOption,attr"`        // measured|modelIfMissing|modelAlways|userSupplied
	DarkCurrentOption string `xml:"darkCurrentOption,attr"` // measured|userSupplied
	OffsetOption      string `xml:"offsetOption,attr"`      // measured|userSupplied

	UserDarkPath        string `xml:"userDarkPath"`
	UserOffsetPath      string `xml:"userOffsetPath"`
	UserDarkCurrentPath string `xml:"userDarkCurrentPath"`
}

// LoadEvaluation parses an Evaluation document.
func LoadEvaluation(r io.Reader) (*EvaluationDocument, error) {
	var doc EvaluationDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("novascfg: decode evaluation document: %w", err)
	}
	return &doc, nil
}

// ForSerial returns the instrument's evaluation block, or false if the
// document has none for that serial.
func (doc *EvaluationDocument) ForSerial(serial string) (InstrumentEvalConf, bool) {
	for _, i := range doc.Instruments {
		if i.Serial == serial {
			return i, true
		}
	}
	return InstrumentEvalConf{}, false
}
