package flux

import "github.com/novacgo/ppp/internal/metdb"

// Tier is the flux result's traffic-light quality (spec §4.11).
type Tier int

const (
	Green Tier = iota
	Yellow
	Red
)

// worse returns whichever tier is more severe.
func worse(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

func combineTiers(tiers ...Tier) Tier {
	t := Green
	for _, tier := range tiers {
		t = worse(t, tier)
	}
	return t
}

// windQuality mirrors the original flux calculator's per-source switch:
// default/user inputs are never trustworthy (red); the two geometry
// sources are plausible but second-best (yellow); dual-beam and the
// numerical-model sources are the best available (green).
func windQuality(source metdb.WindSource) Tier {
	switch source {
	case metdb.SourceDefault, metdb.SourceUser:
		return Red
	case metdb.SourceDualBeam, metdb.SourceNOAA, metdb.SourceECMWF:
		return Green
	default:
		return Yellow
	}
}

// plumeHeightQuality mirrors the original PlumeHeightFluxQuality: only a
// two-instrument geometry fix is trusted as green.
func plumeHeightQuality(source metdb.PlumeHeightSource) Tier {
	switch source {
	case metdb.PlumeSourceDefault, metdb.PlumeSourceUser:
		return Red
	case metdb.PlumeSourceGeometryTwoInstruments:
		return Green
	default:
		return Yellow
	}
}

func completenessQuality(completeness float64) Tier {
	switch {
	case completeness < 0.7:
		return Red
	case completeness < 0.9:
		return Yellow
	default:
		return Green
	}
}
