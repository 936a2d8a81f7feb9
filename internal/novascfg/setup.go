// Package novascfg loads the three XML configuration documents spec §6
// names (Setup, Evaluation, Processing) and overlays CLI flag overrides
// onto the processing document, the way the driver's Config is built for
// a real run.
//
// Grounded on internal/metdb/xml.go's windDoc/windFieldXML/windItemXML
// struct-tag idiom (encoding/xml only, no third-party XML library) and
// internal/config/tuning.go's optional-pointer-field/Get*-default-accessor
// pattern, adapted here into CLI-overlay-onto-XML-default form instead of
// JSON-onto-hardcoded-default.
package novascfg

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"
)

// SetupDocument mirrors spec §6's Setup document: one history of physical
// configuration per instrument serial.
type SetupDocument struct {
	XMLName     xml.Name          `xml:"Setup"`
	Instruments []InstrumentSetup `xml:"instrument"`
}

// InstrumentSetup is one <instrument> block: a serial plus its ordered,
// disjoint location history.
type InstrumentSetup struct {
	Serial    string           `xml:"serial,attr"`
	Locations []LocationPeriod `xml:"location"`

	InitialCalibrationFile string `xml:"initialCalibrationFile"`
	LineShapeFile          string `xml:"lineShapeFile"`
}

// LocationPeriod is one validity window of an instrument's physical setup
// (spec §6 "location history with validFrom/validTo/GPS/compass/cone/tilt/
// scanner type/model name").
type LocationPeriod struct {
	ValidFrom string `xml:"validFrom,attr"`
	ValidTo   string `xml:"validTo,attr"`

	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`

	Compass float64 `xml:"compass,attr"`
	Cone    float64 `xml:"cone,attr"`
	Tilt    float64 `xml:"tilt,attr"`

	ScannerType string `xml:"scannerType,attr"`
	ModelName   string `xml:"model,attr"`
}

// From and To parse the period's validity bounds under xmlTimeLayout.
func (p LocationPeriod) From() (time.Time, error) { return parseConfigTime(p.ValidFrom) }
func (p LocationPeriod) To() (time.Time, error)    { return parseConfigTime(p.ValidTo) }

// xmlTimeLayout matches metdb's windTimeLayout; the configuration XML
// documents share the same timestamp convention as the wind-field XML.
const xmlTimeLayout = "2006.01.02T15:04:05"

func parseConfigTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(xmlTimeLayout, s)
}

// LoadSetup parses a Setup document and validates that each instrument's
// location history is free of overlapping validity windows (spec §6
// "disjoint validity windows").
func LoadSetup(r io.Reader) (*SetupDocument, error) {
	var doc SetupDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("novascfg: decode setup document: %w", err)
	}
	for i := range doc.Instruments {
		if err := validateLocationHistory(doc.Instruments[i]); err != nil {
			return nil, fmt.Errorf("novascfg: instrument %q: %w", doc.Instruments[i].Serial, err)
		}
	}
	return &doc, nil
}

func validateLocationHistory(instr InstrumentSetup) error {
	periods := append([]LocationPeriod(nil), instr.Locations...)
	sort.Slice(periods, func(i, j int) bool { return periods[i].ValidFrom < periods[j].ValidFrom })
	for i := 1; i < len(periods); i++ {
		prevTo, err := periods[i-1].To()
		if err != nil {
			return fmt.Errorf("parse validTo: %w", err)
		}
		from, err := periods[i].From()
		if err != nil {
			return fmt.Errorf("parse validFrom: %w", err)
		}
		if !prevTo.IsZero() && from.Before(prevTo) {
			return fmt.Errorf("overlapping location periods at %s and %s", periods[i-1].ValidFrom, periods[i].ValidFrom)
		}
	}
	return nil
}

// LocationAt returns the location period covering t, or false if the
// instrument had no configured location at t.
func (instr InstrumentSetup) LocationAt(t time.Time) (LocationPeriod, bool) {
	for _, p := range instr.Locations {
		from, err := p.From()
		if err != nil {
			continue
		}
		to, err := p.To()
		if err != nil {
			continue
		}
		if t.Before(from) {
			continue
		}
		if !to.IsZero() && !t.Before(to) {
			continue
		}
		return p, true
	}
	return LocationPeriod{}, false
}
