// scaling.go - Zeitabhaengige Aufloesungs-Skalierung
//
// Dieses Modul enthaelt:
// - resolutionScale: einmal pro Lauf berechneter Skalierungsfaktor
// - factors: die Wahl des aktiven Faktors relativ zur Wasserscheide
//
// Der Wurzel-Faktor haengt nur von der statischen Konfiguration ab und
// wird nie pro Schritt neu berechnet; zeitabhaengig ist allein die
// Zweigwahl.

package lumina

import "math"

// resolutionScale couples the rotary-embedding extrapolation to the
// sampling time. factor = sqrt(width*height / defaultImageSize^2).
type resolutionScale struct {
	factor    float64
	watershed float64
}

func newResolutionScale(width, height, defaultImageSize int, watershed float64) resolutionScale {
	d := float64(defaultImageSize)
	return resolutionScale{
		factor:    math.Sqrt(float64(width) * float64(height) / (d * d)),
		watershed: watershed,
	}
}

// factors decides which factor is active at time t. Exactly one of the
// pair carries the resolution scale, the other is 1.0. The crossover is
// sharp: strictly t < watershed puts the scale on linear_factor, t at or
// above the watershed puts it on ntk_factor.
func (s resolutionScale) factors(t float64) (linearFactor, ntkFactor float64) {
	if t < s.watershed {
		return s.factor, 1.0
	}
	return 1.0, s.factor
}
