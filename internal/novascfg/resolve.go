package novascfg

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/novacgo/ppp/internal/darkresolver"
	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/driver"
	"github.com/novacgo/ppp/internal/dualbeam"
	"github.com/novacgo/ppp/internal/flux"
	"github.com/novacgo/ppp/internal/geometry"
	"github.com/novacgo/ppp/internal/reference"
	"github.com/novacgo/ppp/internal/scaneval"
	"github.com/novacgo/ppp/internal/spectrum"
)

// Documents bundles the three loaded XML configuration documents (spec
// §6) prior to resolution.
type Documents struct {
	Setup      *SetupDocument
	Evaluation *EvaluationDocument
	Processing *ProcessingDocument
}

// ReferenceLoader opens a reference file by path; injected so this
// package never reaches directly for the filesystem (spec §9 "the core
// never reaches into globals").
type ReferenceLoader func(path string) (io.ReadCloser, error)

// Resolve turns the three loaded documents into a driver.Config and the
// run's target Molecule, the acyclic load-time instrument bundle spec §9's
// design notes call for: every instrument's geometry, fit windows, and
// dark settings are dereferenced and owned once here, rather than looked
// up again per scan.
func Resolve(docs Documents, loadRef ReferenceLoader, asOf time.Time) (driver.Config, driver.Molecule, error) {
	if docs.Setup == nil || docs.Evaluation == nil || docs.Processing == nil {
		return driver.Config{}, driver.Molecule{}, fmt.Errorf("novascfg: resolve requires all three documents")
	}

	molecule, err := resolveMolecule(docs.Processing.Molecule)
	if err != nil {
		return driver.Config{}, driver.Molecule{}, err
	}

	mode := resolveMode(docs.Processing.ProcessingMode)

	var instruments []driver.Instrument
	for _, su := range docs.Setup.Instruments {
		loc, ok := su.LocationAt(asOf)
		if !ok {
			return driver.Config{}, driver.Molecule{}, fmt.Errorf("novascfg: instrument %q has no location valid at %s", su.Serial, asOf)
		}

		ev, ok := docs.Evaluation.ForSerial(su.Serial)
		if !ok {
			return driver.Config{}, driver.Molecule{}, fmt.Errorf("novascfg: instrument %q has no evaluation configuration", su.Serial)
		}

		instr, err := resolveInstrument(su, loc, ev, loadRef)
		if err != nil {
			return driver.Config{}, driver.Molecule{}, fmt.Errorf("novascfg: instrument %q: %w", su.Serial, err)
		}
		instruments = append(instruments, instr)
	}

	geomPairs := make([]driver.GeometryPairConfig, 0, len(docs.Processing.GeometryCalc.Pairs))
	for _, p := range docs.Processing.GeometryCalc.Pairs {
		geomPairs = append(geomPairs, driver.GeometryPairConfig{
			Lower: p.Lower, Upper: p.Upper,
			ValidTime:             time.Duration(p.ValidTimeSeconds * float64(time.Second)),
			MaxTimeDifference:     time.Duration(p.MaxTimeDifferenceSeconds * float64(time.Second)),
			MinDistance:           p.MinDistance,
			MaxDistance:           p.MaxDistance,
			MaxPlumeAltError:      p.MaxPlumeAltError,
			MaxWindDirectionError: p.MaxWindDirectionError,
			CompletenessLimit:     p.CompletenessLimit,
		})
	}

	dualPairs := make([]driver.DualBeamPairConfig, 0, len(docs.Processing.DualBeam.Pairs))
	for _, p := range docs.Processing.DualBeam.Pairs {
		dualPairs = append(dualPairs, driver.DualBeamPairConfig{
			Upwind: p.Upwind, Downwind: p.Downwind,
			ValidTime:         time.Duration(p.ValidTimeSeconds * float64(time.Second)),
			MaxWindSpeedError: p.MaxWindSpeedError,
			DeltaThetaDeg:     p.DeltaThetaDeg,
			Settings: dualbeam.Settings{
				BinomialIterations: p.BinomialIterations,
				MaxPhysicalDelay:   time.Duration(p.MaxPhysicalDelaySeconds * float64(time.Second)),
				TestLength:         p.TestLength,
				MinPlumeColumn:     p.MinPlumeColumn,
			},
		})
	}

	cfg := driver.Config{
		Instruments:   instruments,
		GeometryPairs: geomPairs,
		DualBeamPairs: dualPairs,
		Discarding: driver.DiscardingConfig{
			CompletenessLimitFlux:       docs.Processing.Discarding.CompletenessLimitFlux,
			MinimumSaturationInFitRegion: docs.Processing.Discarding.MinimumSaturationInFitRegion,
			MaxExposureTimeGot:          time.Duration(docs.Processing.Discarding.MaxExposureTimeGotSeconds * float64(time.Second)),
			MaxExposureTimeHei:          time.Duration(docs.Processing.Discarding.MaxExposureTimeHeiSeconds * float64(time.Second)),
		},
		MaxThreads: docs.Processing.MaxThreadNum,
		Mode:       mode,
		SourceLat:  docs.Processing.GeometryCalc.SourceLat,
		SourceLon:  docs.Processing.GeometryCalc.SourceLon,
		OutputDir:  docs.Processing.OutputDirectory,
	}
	return cfg, molecule, nil
}

// ResolveMolecule exposes resolveMolecule for callers (cmd/ppp) that need
// the target molecule alongside the resolved Config.
func ResolveMolecule(name string) (driver.Molecule, error) { return resolveMolecule(name) }

func resolveMolecule(name string) (driver.Molecule, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SO2":
		return driver.MoleculeSO2, nil
	case "BRO":
		return driver.MoleculeBrO, nil
	case "NO2":
		return driver.MoleculeNO2, nil
	case "O3":
		return driver.MoleculeO3, nil
	case "HCHO":
		return driver.MoleculeHCHO, nil
	default:
		return driver.Molecule{}, fmt.Errorf("novascfg: unknown molecule %q", name)
	}
}

func resolveMode(name string) scaneval.MeasurementMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "flux":
		return scaneval.ModeFlux
	case "geometry":
		return scaneval.ModeWindSpeed
	case "stratosphere":
		return scaneval.ModeStratosphere
	case "troposphere":
		return scaneval.ModeTroposphere
	case "composition":
		return scaneval.ModeComposition
	case "calibration":
		return scaneval.ModeDirectSun
	default:
		return scaneval.ModeUnknown
	}
}

func resolveScannerType(name string) geometry.ScannerType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cone":
		return geometry.Cone
	case "heidelberg":
		return geometry.Heidelberg
	default:
		return geometry.Flat
	}
}

func resolveOption(name string) reference.Option {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fixed":
		return reference.Fixed
	case "linked":
		return reference.Linked
	case "bounded":
		return reference.Bounded
	default:
		return reference.Free
	}
}

func resolveDarkOption(name string) darkresolver.SpecOption {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "modelifmissing":
		return darkresolver.ModelIfMissing
	case "modelalways":
		return darkresolver.ModelAlways
	case "usersupplied":
		return darkresolver.UserSupplied
	default:
		return darkresolver.MeasuredInScan
	}
}

// boundRadius returns the symmetric bound radius for a Bounded parameter
// (spec §4.5 "limit imposes a symmetric bound around the stored value");
// zero for any other option means unbounded.
func boundRadius(opt reference.Option, value float64) float64 {
	if opt != reference.Bounded {
		return 0
	}
	return value
}

func resolveInstrument(su InstrumentSetup, loc LocationPeriod, ev InstrumentEvalConf, loadRef ReferenceLoader) (driver.Instrument, error) {
	var fitWindows []scaneval.FitWindow
	mainSpeciesIndex := 0
	for wi, w := range ev.FitWindows {
		fw := scaneval.FitWindow{
			FitLow: w.FitLow, FitHigh: w.FitHigh,
			PolyOrder:        w.PolyOrder,
			FindOptimalShift: w.FindOptimalShift,
			SkyShift:         w.SkyShift,
			MinSaturation:    w.MinSaturation,
			ChiSquareLimit:   w.ChiSquareLimit,
		}
		linkIndex := map[string]int{}
		for ri, r := range w.References {
			linkIndex[r.Species] = ri
		}
		for ri, r := range w.References {
			ref, err := loadReference(loadRef, r)
			if err != nil {
				return driver.Instrument{}, fmt.Errorf("fit window %q reference %q: %w", w.Name, r.Species, err)
			}
			ref.ShiftOption = resolveOption(r.ShiftOption)
			ref.ShiftValue = r.ShiftValue
			ref.SqueezeOption = resolveOption(r.SqueezeOption)
			ref.SqueezeValue = r.SqueezeValue
			ref.ColumnOption = resolveOption(r.ColumnOption)
			ref.ColumnValue = r.ColumnValue

			shiftLinkedTo := -1
			if resolveOption(r.ShiftOption) == reference.Linked {
				if idx, ok := linkIndex[r.ShiftLink]; ok {
					shiftLinkedTo = idx
				}
			}
			squeezeLinkedTo := -1
			if resolveOption(r.SqueezeOption) == reference.Linked {
				if idx, ok := linkIndex[r.SqueezeLink]; ok {
					squeezeLinkedTo = idx
				}
			}

			fw.References = append(fw.References, doasfit.RefSpec{
				Ref:             ref,
				ShiftFree:       resolveOption(r.ShiftOption) == reference.Free,
				ShiftLinkedTo:   shiftLinkedTo,
				SqueezeFree:     resolveOption(r.SqueezeOption) == reference.Free,
				SqueezeLinkedTo: squeezeLinkedTo,
				InitialShift:    r.ShiftValue,
				InitialSqueeze:  r.SqueezeValue,
				ShiftBound:      boundRadius(resolveOption(r.ShiftOption), r.ShiftValue),
				SqueezeBound:    boundRadius(resolveOption(r.SqueezeOption), r.SqueezeValue),
			})
			if wi == 0 && r.IsMainSpecies {
				mainSpeciesIndex = ri
			}
		}
		fraunhoferPath := w.FraunhoferReferencePath
		if fraunhoferPath == "" {
			fraunhoferPath = ev.FraunhoferReferencePath
		}
		if fraunhoferPath != "" {
			ref, err := loadReferenceAt(loadRef, fraunhoferPath, "fraunhofer")
			if err != nil {
				return driver.Instrument{}, fmt.Errorf("fit window %q fraunhofer reference: %w", w.Name, err)
			}
			fw.Fraunhofer = &scaneval.FraunhoferReference{Ref: ref}
		}
		fitWindows = append(fitWindows, fw)
	}

	var darkSettings darkresolver.Settings
	if len(ev.DarkRules) > 0 {
		d := ev.DarkRules[0]
		darkSettings = darkresolver.Settings{
			DarkSpecOption:      resolveDarkOption(d.DarkOption),
			DarkCurrentOption:   resolveDarkOption(d.DarkCurrentOption),
			OffsetOption:        resolveDarkOption(d.OffsetOption),
			UserDarkPath:        d.UserDarkPath,
			UserOffsetPath:      d.UserOffsetPath,
			UserDarkCurrentPath: d.UserDarkCurrentPath,
			Loader: func(path string) (*spectrum.Spectrum, error) {
				return loadSpectrum(loadRef, path)
			},
		}
	}

	scannerType := resolveScannerType(loc.ScannerType)

	return driver.Instrument{
		Serial:  su.Serial,
		Geometry: geometry.Geometry{
			Type: scannerType, ConeAngle: loc.Cone, Tilt: loc.Tilt,
			Compass: loc.Compass, Lat: loc.Lat, Lon: loc.Lon,
		},
		ViewingGeom: dualbeam.ViewingGeometry{
			Type: resolveDualBeamKind(scannerType), ConeAngle: loc.Cone, Tilt: loc.Tilt,
		},
		ScannerKind:      int(flux.ResolveKind(loc.Cone, scannerType == geometry.Heidelberg)),
		FitWindows:       fitWindows,
		DarkSettings:     darkSettings,
		MainSpeciesIndex: mainSpeciesIndex,
	}, nil
}

func resolveDualBeamKind(t geometry.ScannerType) dualbeam.ScannerKind {
	if t == geometry.Cone {
		return dualbeam.Cone
	}
	return dualbeam.Flat
}

func loadReference(loadRef ReferenceLoader, r ReferenceXML) (*reference.Reference, error) {
	return loadReferenceAt(loadRef, r.Path, r.Species)
}

func loadReferenceAt(loadRef ReferenceLoader, path, species string) (*reference.Reference, error) {
	f, err := loadRef(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()
	return reference.Load(f, species)
}

// loadSpectrum reads a user-supplied dark/offset/dark-current spectrum
// from a whitespace-separated column of intensities, the same bare-column
// convention reference.Load accepts for a cross-section file.
func loadSpectrum(loadRef ReferenceLoader, path string) (*spectrum.Spectrum, error) {
	f, err := loadRef(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	ref, err := reference.Load(f, "")
	if err != nil {
		return nil, err
	}
	sp, err := spectrum.New(len(ref.Values), spectrum.Meta{})
	if err != nil {
		return nil, err
	}
	copy(sp.Intensity, ref.Values)
	return sp, nil
}
