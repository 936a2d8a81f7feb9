// Package darkresolver implements the dark/offset resolution policy (C4):
// given a scan reader, the measurement spectrum under evaluation, and the
// configured dark settings, it decides which dark spectrum to subtract.
//
// Grounded on internal/lidar/l3grid/background.go's measured-vs-modelled
// decision branching (a background estimate is either taken directly from
// observed data or synthesised from a model, chosen by policy).
package darkresolver

import (
	"fmt"

	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/scanreader"
	"github.com/novacgo/ppp/internal/spectrum"
)

// SpecOption selects how a component spectrum (dark/offset/dark-current)
// is sourced (spec §3 "Dark settings").
type SpecOption int

const (
	MeasuredInScan SpecOption = iota
	ModelIfMissing
	ModelAlways
	UserSupplied
)

// Settings mirrors spec §3's DarkSettings value.
type Settings struct {
	DarkSpecOption    SpecOption // measured-in-scan / model-if-missing / model-always / user-supplied
	DarkCurrentOption SpecOption // measured-in-scan / user-supplied
	OffsetOption      SpecOption // measured-in-scan / user-supplied

	UserDarkPath        string
	UserOffsetPath      string
	UserDarkCurrentPath string

	// Loader fetches a user-supplied spectrum by path. Injected so this
	// package has no direct file-system dependency.
	Loader func(path string) (*spectrum.Spectrum, error)
}

// Branch records which policy branch produced the dark, for logging
// (spec §4.4: "Logs which policy branch fired").
type Branch string

const (
	BranchMeasuredInScan Branch = "measured-in-scan"
	BranchModelled       Branch = "modelled"
	BranchUserSupplied   Branch = "user-supplied"
)

// Resolve returns the dark spectrum to subtract from measurement, and the
// branch that produced it.
func Resolve(reader *scanreader.Reader, measurement *scanreader.Record, settings Settings) (*spectrum.Spectrum, Branch, error) {
	switch settings.DarkSpecOption {
	case MeasuredInScan:
		dark, err := fromScan(reader, measurement)
		if err == nil {
			return dark, BranchMeasuredInScan, nil
		}
		// Fall back per policy: without an explicit fallback configured,
		// MeasuredInScan with no usable dark is a hard failure.
		return nil, "", novaserr.Wrap(novaserr.DarkUnavailable, "darkresolver: measured-in-scan dark unusable", err)

	case ModelIfMissing:
		if dark, err := fromScan(reader, measurement); err == nil {
			return dark, BranchMeasuredInScan, nil
		}
		dark, err := model(reader, measurement, settings)
		if err != nil {
			return nil, "", err
		}
		return dark, BranchModelled, nil

	case ModelAlways:
		dark, err := model(reader, measurement, settings)
		if err != nil {
			return nil, "", err
		}
		return dark, BranchModelled, nil

	case UserSupplied:
		dark, err := userSuppliedDark(settings)
		if err != nil {
			return nil, "", err
		}
		return dark, BranchUserSupplied, nil
	}
	return nil, "", novaserr.New(novaserr.DarkUnavailable, "darkresolver: unknown dark spec option")
}

// fromScan returns the in-file dark, scaled to the measurement's coadd
// count, provided its exposure time matches the measurement's (spec §4.4).
func fromScan(reader *scanreader.Reader, measurement *scanreader.Record) (*spectrum.Spectrum, error) {
	dark, err := reader.GetDark()
	if err != nil {
		return nil, err
	}
	if dark.ExposureTimeMS != measurement.ExposureTimeMS {
		return nil, fmt.Errorf("darkresolver: dark exposure %dms != measurement exposure %dms", dark.ExposureTimeMS, measurement.ExposureTimeMS)
	}
	s := dark.ToSpectrum()
	if err := s.DivideByCoadds(); err != nil {
		return nil, err
	}
	return s, nil
}

// model builds dark = offset + darkCurrent * (exposureTime / darkCurrentExposureTime),
// each of offset and dark-current independently sourced from-scan or
// user-supplied (spec §4.4).
func model(reader *scanreader.Reader, measurement *scanreader.Record, settings Settings) (*spectrum.Spectrum, error) {
	offset, err := resolveComponent(reader, settings.OffsetOption, settings.UserOffsetPath, settings.Loader, scanreader.KindOffset)
	if err != nil {
		return nil, novaserr.Wrap(novaserr.DarkUnavailable, "darkresolver: offset component", err)
	}
	darkCurrent, darkCurrentExposureMS, err := resolveDarkCurrentWithExposure(reader, settings)
	if err != nil {
		return nil, novaserr.Wrap(novaserr.DarkUnavailable, "darkresolver: dark-current component", err)
	}
	if darkCurrentExposureMS <= 0 {
		return nil, novaserr.New(novaserr.DarkUnavailable, "darkresolver: zero dark-current exposure time")
	}

	scale := float64(measurement.ExposureTimeMS) / float64(darkCurrentExposureMS)
	modelled := offset.Clone()
	for i := range modelled.Intensity {
		modelled.Intensity[i] += darkCurrent.Intensity[i] * scale
	}
	return modelled, nil
}

func resolveComponent(reader *scanreader.Reader, option SpecOption, userPath string, loader func(string) (*spectrum.Spectrum, error), kind scanreader.Kind) (*spectrum.Spectrum, error) {
	switch option {
	case UserSupplied:
		if loader == nil {
			return nil, fmt.Errorf("darkresolver: user-supplied component requested but no loader configured")
		}
		return loader(userPath)
	default: // MeasuredInScan
		var rec *scanreader.Record
		var err error
		switch kind {
		case scanreader.KindOffset:
			rec, err = reader.GetOffset()
		case scanreader.KindDarkCurrent:
			rec, err = reader.GetDarkCurrent()
		}
		if err != nil {
			return nil, err
		}
		s := rec.ToSpectrum()
		if err := s.DivideByCoadds(); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func resolveDarkCurrentWithExposure(reader *scanreader.Reader, settings Settings) (*spectrum.Spectrum, int, error) {
	switch settings.DarkCurrentOption {
	case UserSupplied:
		if settings.Loader == nil {
			return nil, 0, fmt.Errorf("darkresolver: user-supplied dark-current requested but no loader configured")
		}
		s, err := settings.Loader(settings.UserDarkCurrentPath)
		if err != nil {
			return nil, 0, err
		}
		return s, s.Meta.ExposureTimeMS, nil
	default:
		rec, err := reader.GetDarkCurrent()
		if err != nil {
			return nil, 0, err
		}
		s := rec.ToSpectrum()
		if err := s.DivideByCoadds(); err != nil {
			return nil, 0, err
		}
		return s, rec.ExposureTimeMS, nil
	}
}

func userSuppliedDark(settings Settings) (*spectrum.Spectrum, error) {
	if settings.Loader == nil {
		return nil, fmt.Errorf("darkresolver: user-supplied dark requested but no loader configured")
	}
	return settings.Loader(settings.UserDarkPath)
}
