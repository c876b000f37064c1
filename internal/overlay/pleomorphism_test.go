package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformNuclei(n int) []regionFeatures {
	nuclei := make([]regionFeatures, n)
	for i := range nuclei {
		nuclei[i] = regionFeatures{
			area:          200,
			perimeter:     50,
			circularity:   0.95,
			solidity:      0.98,
			eccentricity:  0.1,
			majorAxis:     16,
			minorAxis:     15,
			aspectRatio:   1.07,
			meanIntensity: 120,
			intensityStd:  5,
			equivDiameter: 16,
		}
	}
	return nuclei
}

func TestPleomorphismScoreZeroNuclei(t *testing.T) {
	score, grade, metrics := pleomorphismScore(nil)

	assert.Equal(t, 0.0, score)
	assert.Equal(t, "No nuclei detected", grade)
	assert.Empty(t, metrics)
}

func TestPleomorphismScoreUniformNucleiGradeLow(t *testing.T) {
	score, grade, metrics := pleomorphismScore(uniformNuclei(10))

	assert.Less(t, score, 1.0)
	assert.Equal(t, "Grade 1 (Low pleomorphism)", grade)
	assert.Equal(t, 10, metrics["total_nuclei"])
	assert.InDelta(t, 0.0, metrics["area_cv"].(float64), 1e-9)
}

func TestPleomorphismScoreVariationRaisesScore(t *testing.T) {
	uniformScore, _, _ := pleomorphismScore(uniformNuclei(10))

	varied := uniformNuclei(10)
	for i := range varied {
		varied[i].area = 50 + float64(i)*120
		varied[i].circularity = 0.3 + float64(i%3)*0.2
		varied[i].eccentricity = 0.8
		varied[i].intensityStd = 60
	}
	variedScore, variedGrade, _ := pleomorphismScore(varied)

	assert.Greater(t, variedScore, uniformScore)
	assert.NotEqual(t, "Grade 1 (Low pleomorphism)", variedGrade)
}

func TestPleomorphismScoreSubScoresCapped(t *testing.T) {
	extreme := uniformNuclei(6)
	for i := range extreme {
		extreme[i].area = float64(1 + i*5000)
		extreme[i].circularity = 0.01
		extreme[i].eccentricity = 0.99
		extreme[i].intensityStd = 500
	}
	score, _, metrics := pleomorphismScore(extreme)

	assert.LessOrEqual(t, metrics["size_score"].(float64), 1.0)
	assert.LessOrEqual(t, metrics["shape_score"].(float64), 1.0)
	assert.LessOrEqual(t, metrics["texture_score"].(float64), 1.0)
	assert.LessOrEqual(t, score, 3.0)
}

func TestMeanStd(t *testing.T) {
	nuclei := []regionFeatures{{area: 2}, {area: 4}, {area: 6}}

	mean, std := meanStd(nuclei, func(f regionFeatures) float64 { return f.area })
	assert.InDelta(t, 4.0, mean, 1e-9)
	assert.InDelta(t, 2.0, std, 1e-9)

	// A single nucleus has zero spread, and no nuclei at all degrade to
	// zeros rather than NaN.
	mean, std = meanStd(nuclei[:1], func(f regionFeatures) float64 { return f.area })
	require.Equal(t, 2.0, mean)
	require.Equal(t, 0.0, std)

	mean, std = meanStd(nil, func(f regionFeatures) float64 { return f.area })
	require.Equal(t, 0.0, mean)
	require.Equal(t, 0.0, std)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.5, coefficientOfVariation(2, 4))
	assert.Equal(t, 0.0, coefficientOfVariation(2, 0))
}
