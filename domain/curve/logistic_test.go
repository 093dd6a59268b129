package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogistic2RoundTrip(t *testing.T) {
	for _, p1 := range []float64{0, 0.5, 1.3, 2.7} {
		for _, p2 := range []float64{0.4, 1, 2.5, 6} {
			for _, q := range []float64{0.01, 0.25, 0.5, 0.75, 0.99} {
				lux := ED(q, p1, p2)
				assert.InDelta(t, q, Logistic2(lux, p1, p2), 1e-9, "p1=%g p2=%g q=%g", p1, p2, q)
			}
		}
	}
}

func TestLogistic2Monotonic(t *testing.T) {
	p1, p2 := 1.4, 1.8
	prev := Logistic2(0.1, p1, p2)
	for lux := 0.2; lux < 1e5; lux *= 1.5 {
		y := Logistic2(lux, p1, p2)
		assert.Greater(t, y, prev, "lux=%g", lux)
		assert.True(t, y > 0 && y < 1)
		prev = y
	}
}

func TestED50(t *testing.T) {
	assert.InDelta(t, ED50(1.5), ED(0.5, 1.5, 3), 1e-9)
	assert.InDelta(t, 0.5, Logistic2(math.Pow(10, 2), 2, 1), 1e-12)
}
