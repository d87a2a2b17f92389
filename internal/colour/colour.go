// Package colour implements the distance-to-colour interpolation model of
// spec §4.4, split out of internal/display because the original keeps
// _interpolate_color and _compute_display_levels as free functions
// reusable outside the display FSM's state.
package colour

import "github.com/librescoot/parking-assist/internal/port"

// Named endpoint colours (spec §4.4).
var (
	Red       = port.RGB{R: 255, G: 0, B: 0}
	Yellow    = port.RGB{R: 255, G: 255, B: 0}
	Green     = port.RGB{R: 0, G: 255, B: 0}
	Turquoise = port.RGB{R: 0, G: 255, B: 255}
	Blue      = port.RGB{R: 0, G: 0, B: 255}
	Off       = port.RGB{R: 0, G: 0, B: 0}
)

// Range boundaries in cm, per spec §4.4's colour table.
const (
	DangerMinCM    = 0
	WarningMinCM   = 25
	NoProblemMinCM = 50
	InfoMinCM      = 150
	OkMinCM        = 175
	OkMaxCM        = 200
)

// Interpolate linearly blends colour1 (t=0) into colour2 (t=255), per
// channel: c = ((255-t)*c1 + t*c2) / 255.
func Interpolate(colour1, colour2 port.RGB, t uint8) port.RGB {
	return port.RGB{
		R: blend(colour1.R, colour2.R, t),
		G: blend(colour1.G, colour2.G, t),
		B: blend(colour1.B, colour2.B, t),
	}
}

func blend(c1, c2, t uint8) uint8 {
	return uint8((uint16(255-t)*uint16(c1) + uint16(t)*uint16(c2)) / 255)
}

// ForDistance computes the RGB colour for a measured distance in cm,
// per spec §4.4's boundary table. distanceCM is int32 because -1 (unset)
// and values above OkMaxCM must fall through to Off.
func ForDistance(distanceCM int32) port.RGB {
	switch {
	case distanceCM >= DangerMinCM && distanceCM <= WarningMinCM:
		t := scale(distanceCM-DangerMinCM, WarningMinCM-DangerMinCM)
		return Interpolate(Red, Yellow, t)
	case distanceCM > WarningMinCM && distanceCM <= NoProblemMinCM:
		t := scale(distanceCM-WarningMinCM, NoProblemMinCM-WarningMinCM)
		return Interpolate(Yellow, Green, t)
	case distanceCM > NoProblemMinCM && distanceCM <= InfoMinCM:
		t := scale(distanceCM-NoProblemMinCM, InfoMinCM-NoProblemMinCM)
		return Interpolate(Green, Turquoise, t)
	case distanceCM > InfoMinCM && distanceCM <= OkMinCM:
		t := scale(distanceCM-InfoMinCM, OkMinCM-InfoMinCM)
		return Interpolate(Turquoise, Blue, t)
	case distanceCM > OkMinCM && distanceCM <= OkMaxCM:
		return Blue
	default:
		return Off
	}
}

// scale maps offset (0..span) to a t in [0,255], matching the original's
// ((uint8_t)offset * 255) / span integer arithmetic.
func scale(offset, span int32) uint8 {
	return uint8((offset * 255) / span)
}
