package dualbeam

import (
	"math"

	"github.com/novacgo/ppp/internal/novaserr"
)

// ViewingGeometry carries the scanner parameters needed to turn a plume
// altitude and an angular viewing separation into a ground distance (spec
// §4.10 step 6).
type ViewingGeometry struct {
	Type ScannerKind
	// ConeAngle and Tilt apply to ScannerKind Cone only, mirroring
	// geometry.Geometry's fields of the same name.
	ConeAngle float64
	Tilt      float64
	// ScanAngle is the angle between the plume-centre line of sight and the
	// vertical plane containing the wind, used to project the along-ray
	// separation onto the ground.
	ScanAngle float64
}

// ScannerKind mirrors geometry.ScannerType for the two families the
// dual-beam distance formulas distinguish; Heidelberg scanners are not a
// supported dual-beam configuration (spec §4.10 Non-goals).
type ScannerKind int

const (
	Flat ScannerKind = iota
	Cone
)

// groundDistance converts the angular separation deltaThetaDeg between the
// two viewing directions, at plume height h metres above the scanner, into
// a ground distance along the wind (spec §4.10 step 6 formulas).
func groundDistance(vg ViewingGeometry, h, deltaThetaDeg float64) (float64, error) {
	deltaTheta := degToRad(deltaThetaDeg)
	var d float64
	switch vg.Type {
	case Flat:
		d = h * math.Tan(deltaTheta)
	case Cone:
		beta := degToRad(90) - degToRad(vg.ConeAngle-math.Abs(vg.Tilt))
		d = h * math.Abs(math.Tan(beta)-math.Tan(beta-deltaTheta))
	default:
		return 0, novaserr.New(novaserr.ConfigurationInvalid, "dualbeam: unsupported scanner kind for distance formula")
	}
	return d * math.Cos(degToRad(vg.ScanAngle)), nil
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
