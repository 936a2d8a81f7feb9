// Package scaneval implements the scan evaluator (C6): it orchestrates
// spectrum reading (C2), dark resolution (C4), and DOAS fitting (C5) across
// every measurement spectrum in one scan, producing a ScanResult.
//
// Grounded on internal/lidar/pipeline/tracking_pipeline.go's
// TrackingPipelineConfig/NewFrameCallback shape: a config struct holding
// collaborators plus a driving method that runs the per-item loop, with
// each stage (read, correct, fit) kept behind its own package boundary.
package scaneval

import (
	"io"
	"math"
	"time"

	"github.com/novacgo/ppp/internal/darkresolver"
	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/flux"
	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/plumeprops"
	"github.com/novacgo/ppp/internal/reference"
	"github.com/novacgo/ppp/internal/scanreader"
	"github.com/novacgo/ppp/internal/spectrum"
)

// MeasurementMode classifies what a scan was acquired for (spec §3 "Scan
// result"). The evaluator itself never sets this; the post-processing
// driver copies its configured run mode (driver.Config.Mode) onto the
// ScanResult it receives back.
type MeasurementMode int

const (
	ModeUnknown MeasurementMode = iota
	ModeFlux
	ModeWindSpeed
	ModeStratosphere
	ModeDirectSun
	ModeComposition
	ModeLunar
	ModeTroposphere
	ModeMaxDOAS
)

// SpectrometerModel carries the per-model detector characteristics the
// saturation gate needs (spec §4.6 "per-model dynamic range").
type SpectrometerModel struct {
	Name         string
	DynamicRange float64 // full-scale detector counts
}

// FraunhoferReference pairs a reference with the shift/squeeze-freezing
// pre-evaluation path (spec §4.6 "If the window has a Fraunhofer reference").
type FraunhoferReference struct {
	Ref *reference.Reference
}

// FitWindow is the evaluator's view of a named fit configuration (spec §3
// "Fit window"). InterlaceStep/StartChannel/SpecLength are defaults; the
// evaluator rebinds them from the scan's observed values during setup.
type FitWindow struct {
	FitLow, FitHigh int
	PolyOrder       int
	Type            doasfit.FitType
	References      []doasfit.RefSpec

	InterlaceStep int
	StartChannel  int
	SpecLength    int

	Fraunhofer       *FraunhoferReference
	FindOptimalShift bool
	SkyShift         bool

	OffsetRemovalLow, OffsetRemovalHigh int

	// MinSaturation is the fraction of the model's dynamic range below
	// which a spectrum's fit-region intensity is ignored (spec §4.6,
	// "typically 0.05"). Zero means use the package default.
	MinSaturation float64
	// ChiSquareLimit gates the goodness-of-fit check (spec §4.6). Zero
	// means use the package default.
	ChiSquareLimit float64
}

// DefaultMinSaturation and DefaultChiSquareLimit are applied when a
// FitWindow leaves the corresponding field at zero.
const (
	DefaultMinSaturation  = 0.05
	DefaultChiSquareLimit = 1.0
	skySaturationMin      = 0.1
	skySaturationMax      = 0.95
)

// SpectrumInfo carries the per-spectrum metadata the evaluator records
// alongside each fit (spec §3 "SpectrumInfo").
type SpectrumInfo struct {
	ScanAngle          float64
	SecondaryScanAngle float64
	PeakIntensity      float64
	FitRegionIntensity float64
	Saturation         float64
	StartTime          time.Time
	StopTime           time.Time
	Index              int // acquisition-order index in the source scan
}

// ScanResult is the evaluator's complete output for one scan (spec §3
// "Scan result"). PlumeProperties and Flux are left nil; C7 and C11
// populate them in later pipeline stages.
type ScanResult struct {
	FitResults       []doasfit.Result
	Infos            []SpectrumInfo
	SkyInfo          SpectrumInfo
	DarkInfo         SpectrumInfo
	CorruptedIndices map[int]bool

	Mode           MeasurementMode
	InstrumentType spectrum.ScannerType

	BadEvaluation []bool
	Deleted       []bool

	LargestColumnIndex int
	LargestColumn      float64

	// PlumeProperties is nil until the driver runs C7 on this result.
	PlumeProperties *plumeprops.Result
	// Flux is nil until the driver runs C11 on this result.
	Flux *flux.Result

	// Rejected is non-nil when the whole scan was rejected before any
	// per-spectrum fit ran (e.g. SkySaturationOutOfBand).
	Rejected error
}

// Evaluate runs the C6 contract: evaluate(scan, fitWindow, spectrometerModel,
// darkSettings) -> ScanResult (spec §4.6).
func Evaluate(reader *scanreader.Reader, window FitWindow, model SpectrometerModel, darkSettings darkresolver.Settings) (*ScanResult, error) {
	if window.FitHigh <= window.FitLow || len(window.References) == 0 {
		return nil, novaserr.New(novaserr.IllConditioned, "scaneval: invalid fit window")
	}
	seen := make(map[string]bool)
	for _, rs := range window.References {
		if seen[rs.Ref.SourcePath] && rs.Ref.SourcePath != "" {
			return nil, novaserr.New(novaserr.IllConditioned, "scaneval: duplicate reference path in fit window")
		}
		seen[rs.Ref.SourcePath] = true
	}

	if step, err := reader.InterlaceStep(); err == nil {
		window.InterlaceStep = step
	}
	if sc, err := reader.StartChannel(); err == nil {
		window.StartChannel = sc
	}
	if n, err := reader.SpectrumLength(); err == nil {
		window.SpecLength = n
	}

	minSaturation := window.MinSaturation
	if minSaturation == 0 {
		minSaturation = DefaultMinSaturation
	}
	chiSqLimit := window.ChiSquareLimit
	if chiSqLimit == 0 {
		chiSqLimit = DefaultChiSquareLimit
	}

	skyRec, err := reader.GetSky()
	if err != nil {
		return nil, err
	}
	skySpec := skyRec.ToSpectrum()
	if !skySpec.AlreadyAveraged() {
		if err := skySpec.DivideByCoadds(); err != nil {
			return nil, err
		}
	}
	if err := skySpec.CacheFitRegionPeak(window.FitLow, window.FitHigh); err != nil {
		return nil, err
	}
	skySaturation := spectrum.SaturationRatio(skySpec.Meta.FitRegionIntensity, model.DynamicRange)
	skyInfo := SpectrumInfo{
		ScanAngle: skyRec.ScanAngle, SecondaryScanAngle: skyRec.SecondaryScanAngle,
		FitRegionIntensity: skySpec.Meta.FitRegionIntensity, Saturation: skySaturation,
		StartTime: skyRec.StartTime, StopTime: skyRec.StopTime,
	}
	if skySaturation <= skySaturationMin || skySaturation >= skySaturationMax {
		return &ScanResult{SkyInfo: skyInfo, Rejected: novaserr.New(novaserr.SkyUnusable, "scaneval: SkySaturationOutOfBand")}, nil
	}

	darkRec, dbErr := reader.GetDark()
	var darkInfo SpectrumInfo
	if dbErr == nil {
		darkInfo = SpectrumInfo{ScanAngle: darkRec.ScanAngle, StartTime: darkRec.StartTime, StopTime: darkRec.StopTime}
	}

	window = preEvaluate(reader, window, skySpec, darkSettings)

	result := &ScanResult{
		SkyInfo:          skyInfo,
		DarkInfo:         darkInfo,
		CorruptedIndices: reader.CorruptedIndices(),
	}

	if err := reader.Reset(); err != nil {
		return nil, err
	}

	for {
		rec, err := reader.GetNextMeasurementSpectrum()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		s := rec.ToSpectrum()
		if window.InterlaceStep > 1 {
			if err := spectrum.Interpolate(s, window.InterlaceStep); err != nil {
				novaslog.Tracef("scaneval: interpolate spectrum index=%d: %v", rec.ScanIndex, err)
				continue
			}
		}

		peak, _, err := s.MaxInRange(0, s.Len()-1)
		if err != nil {
			continue
		}
		s.Meta.PeakIntensity = peak
		if err := s.CacheFitRegionPeak(window.FitLow, window.FitHigh); err != nil {
			continue
		}
		saturation := spectrum.SaturationRatio(s.Meta.FitRegionIntensity, model.DynamicRange)

		info := SpectrumInfo{
			ScanAngle: rec.ScanAngle, SecondaryScanAngle: rec.SecondaryScanAngle,
			PeakIntensity: peak, FitRegionIntensity: s.Meta.FitRegionIntensity,
			Saturation: saturation, StartTime: rec.StartTime, StopTime: rec.StopTime,
			Index: rec.ScanIndex,
		}
		if saturation < minSaturation {
			continue
		}

		if !s.AlreadyAveraged() {
			if err := s.DivideByCoadds(); err != nil {
				continue
			}
		}

		dark, _, err := darkresolver.Resolve(reader, rec, darkSettings)
		if err != nil {
			continue
		}
		if err := s.Sub(dark); err != nil {
			continue
		}

		fit, fitErr := doasfit.Fit(s.Intensity, skySpec.Intensity, doasfit.Window{
			FitLow: window.FitLow, FitHigh: window.FitHigh, PolyOrder: window.PolyOrder,
			Type: window.Type, References: window.References,
		})

		bad := false
		if fitErr != nil {
			bad = true
			fit = &doasfit.Result{ChiSquare: math.Inf(1)}
		} else if fit.ChiSquare > chiSqLimit || !isFiniteBounded(fit.PerReference) {
			bad = true
		}

		result.FitResults = append(result.FitResults, *fit)
		result.Infos = append(result.Infos, info)
		result.BadEvaluation = append(result.BadEvaluation, bad)
		result.Deleted = append(result.Deleted, false)

		if !bad {
			for _, rr := range fit.PerReference {
				if math.Abs(rr.Column) > result.LargestColumn {
					result.LargestColumn = math.Abs(rr.Column)
					result.LargestColumnIndex = len(result.FitResults) - 1
				}
			}
		}
	}

	return result, nil
}

func isFiniteBounded(refs []doasfit.ReferenceResult) bool {
	for _, rr := range refs {
		if math.IsNaN(rr.ColumnError) || math.IsInf(rr.ColumnError, 0) {
			return false
		}
	}
	return true
}

// preEvaluate runs the pre-evaluation decision described in spec §4.6:
// either a Fraunhofer-based shift/squeeze freeze, an auto-shift-from-
// strongest-absorber pass, or the window left as configured.
func preEvaluate(reader *scanreader.Reader, window FitWindow, sky *spectrum.Spectrum, darkSettings darkresolver.Settings) FitWindow {
	switch {
	case window.Fraunhofer != nil:
		return fraunhoferPreEvaluate(reader, window, sky)
	case window.FindOptimalShift:
		return autoShiftPreEvaluate(reader, window, sky, darkSettings)
	default:
		return window
	}
}

func fraunhoferPreEvaluate(reader *scanreader.Reader, window FitWindow, sky *spectrum.Spectrum) FitWindow {
	n, err := reader.Count()
	if err != nil {
		return window
	}
	var best *scanreader.Record
	var bestSat float64
	for i := 0; i < n; i++ {
		rec, err := reader.GetSpectrumByIndex(i)
		if err != nil || rec.Kind != scanreader.KindMeasurement {
			continue
		}
		s := rec.ToSpectrum()
		if err := s.CacheFitRegionPeak(window.FitLow, window.FitHigh); err != nil {
			continue
		}
		sat := s.Meta.FitRegionIntensity / math.Max(sky.Meta.FitRegionIntensity, 1)
		if sat <= 0.1 || sat >= 0.9 {
			continue
		}
		if best == nil || math.Abs(sat-0.9) < math.Abs(bestSat-0.9) {
			best, bestSat = rec, sat
		}
	}
	if best == nil {
		return window
	}

	fhWindow := doasfit.Window{
		FitLow: window.FitLow, FitHigh: window.FitHigh, PolyOrder: window.PolyOrder, Type: window.Type,
		References: []doasfit.RefSpec{{Ref: window.Fraunhofer.Ref, ShiftFree: true}},
	}
	fit, err := doasfit.Fit(best.ToSpectrum().Intensity, sky.Intensity, fhWindow)
	if err != nil || len(fit.PerReference) == 0 {
		return window
	}
	rr := fit.PerReference[0]
	if math.Abs(rr.ShiftError) >= 1.0 || math.Abs(rr.SqueezeError) >= 0.01 {
		return window
	}
	for i := range window.References {
		window.References[i].InitialShift = rr.Shift
		window.References[i].InitialSqueeze = rr.Squeeze
		window.References[i].ShiftFree = false
		window.References[i].SqueezeFree = false
	}
	return window
}

func autoShiftPreEvaluate(reader *scanreader.Reader, window FitWindow, sky *spectrum.Spectrum, darkSettings darkresolver.Settings) FitWindow {
	fixed := append([]doasfit.RefSpec(nil), window.References...)
	for i := range fixed {
		fixed[i].ShiftFree = false
		fixed[i].SqueezeFree = false
	}

	if err := reader.Reset(); err != nil {
		return window
	}
	type candidate struct {
		rec *scanreader.Record
		col float64
	}
	var best *candidate
	for {
		rec, err := reader.GetNextMeasurementSpectrum()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		s := rec.ToSpectrum()
		if err := s.DivideByCoadds(); err != nil {
			continue
		}
		dark, _, derr := darkresolver.Resolve(reader, rec, darkSettings)
		if derr != nil {
			continue
		}
		if err := s.Sub(dark); err != nil {
			continue
		}
		fit, ferr := doasfit.Fit(s.Intensity, sky.Intensity, doasfit.Window{
			FitLow: window.FitLow, FitHigh: window.FitHigh, PolyOrder: window.PolyOrder, Type: window.Type, References: fixed,
		})
		if ferr != nil || len(fit.PerReference) == 0 {
			continue
		}
		rr := fit.PerReference[0]
		if math.Abs(rr.Column) < 2*rr.ColumnError {
			continue
		}
		if best == nil || math.Abs(rr.Column) > best.col {
			best = &candidate{rec: rec, col: math.Abs(rr.Column)}
		}
	}
	if best == nil {
		return window
	}

	refit := append([]doasfit.RefSpec(nil), window.References...)
	refit[0].ShiftFree = true
	refit[0].SqueezeFree = true
	for i := 1; i < len(refit); i++ {
		refit[i].ShiftFree = false
		refit[i].SqueezeFree = false
		refit[i].ShiftLinkedTo = 0
		refit[i].SqueezeLinkedTo = 0
	}
	s := best.rec.ToSpectrum()
	_ = s.DivideByCoadds()
	dark, _, derr := darkresolver.Resolve(reader, best.rec, darkSettings)
	if derr != nil {
		return window
	}
	_ = s.Sub(dark)
	fit, ferr := doasfit.Fit(s.Intensity, sky.Intensity, doasfit.Window{
		FitLow: window.FitLow, FitHigh: window.FitHigh, PolyOrder: window.PolyOrder, Type: window.Type, References: refit,
	})
	if ferr != nil || len(fit.PerReference) == 0 {
		return window
	}
	frozenShift, frozenSqueeze := fit.PerReference[0].Shift, fit.PerReference[0].Squeeze
	for i := range window.References {
		window.References[i].InitialShift = frozenShift
		window.References[i].InitialSqueeze = frozenSqueeze
		window.References[i].ShiftFree = false
		window.References[i].SqueezeFree = false
	}
	return window
}
