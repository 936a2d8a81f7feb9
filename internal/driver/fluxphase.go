package driver

import (
	"github.com/novacgo/ppp/internal/flux"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/scaneval"
)

// runFlux computes C11 for every scan whose mode is flux, using whichever
// wind field and plume height the databases hold at the scan's own start
// time (spec §4.12 "C11 runs per scan with the latest databases"; spec
// invariant 2: "the wind field and plume height used are exactly those
// returned by the databases at the scan's start time").
func runFlux(cfg Config, scans []*evaluatedScan, molecule Molecule, tally *Tally) {
	for _, es := range scans {
		if es.Result.Mode != scaneval.ModeFlux {
			continue
		}
		if es.Result.Rejected != nil || es.Result.PlumeProperties == nil || !es.Result.PlumeProperties.Visible {
			continue
		}

		wind, err := cfg.WindDB.GetWindField(es.Identity.StartTime, metdb.Location{}, true, metdb.MethodExact)
		if err != nil {
			tally.RecordSkip(es.Identity.Serial, novaserr.PlumeNotSeen)
			continue
		}
		plumeHeight, err := cfg.PlumeDB.GetPlumeHeight(es.Identity.StartTime, es.Identity.StartTime)
		if err != nil {
			tally.RecordSkip(es.Identity.Serial, novaserr.PlumeNotSeen)
			continue
		}

		angles, secondary, columns, exclude := goodSeries(es.Result, es.Instrument.MainSpeciesIndex)
		fa, fs, fc := filteredSeries(angles, secondary, columns, exclude)

		in := flux.Input{
			Instrument: flux.Instrument{
				Kind: flux.InstrumentKind(es.Instrument.ScannerKind),
				ConeAngle: es.Instrument.Geometry.ConeAngle, Tilt: es.Instrument.Geometry.Tilt,
				Compass: es.Instrument.Geometry.Compass,
			},
			Angles: fa, SecondaryAngles: fs, Columns: fc,
			Offset: es.Result.PlumeProperties.Offset, MolarMassGPerMol: molecule.MolarMass,
			Wind: wind, PlumeHeight: plumeHeight,
			InstrumentAltitude: es.Instrument.Geometry.Altitude,
			Completeness:       es.Result.PlumeProperties.Completeness,
			CompletenessLimit:  cfg.Discarding.CompletenessLimitFlux,
		}

		result, err := flux.Compute(in)
		if err != nil {
			tally.RecordSkip(es.Identity.Serial, kindOf(err))
			novaslog.Tracef("driver: flux for %s %s: %v", es.Identity.Serial, es.Identity.StartTime, err)
			continue
		}
		es.Result.Flux = result
	}
}
