// internal/domain/pricing/estimator.go
package pricing

import (
	"math"
	"strings"
)

const (
	defaultStyleBasePrice = 15000.0
	minAreaMultiplier     = 0.8
	maxAreaMultiplier     = 1.5
	hardwareKitPremium    = 1.3
)

// Base price per door style. Russian catalog labels map to the same values.
var styleBasePrices = map[string]float64{
	"modern":       15000,
	"современная":  15000,
	"classic":      18000,
	"классическая": 18000,
	"neoclassic":   17000,
	"неоклассика":  17000,
	"hidden":       31150,
	"скрытая":      31150,
	"aluminum":     22000,
	"алюминиевая":  22000,
}

var finishMultipliers = map[string]float64{
	"pvc":         1.0,
	"пвх":         1.0,
	"paint":       1.1,
	"enamel":      1.1,
	"эмаль":       1.1,
	"veneer":      1.3,
	"шпон":        1.3,
	"nanotex":     1.2,
	"нанотекс":    1.2,
	"glass":       1.4,
	"стекло":      1.4,
	"finish":      0.9,
	"unfinished":  0.9,
	"под отделку": 0.9,
}

// Estimate computes an approximate door price from the static multiplier
// tables. It is pure: equal requests always produce equal results.
func Estimate(req Request) Result {
	req = req.Normalize()

	base, ok := styleBasePrices[strings.ToLower(req.Style)]
	if !ok {
		base = defaultStyleBasePrice
	}

	area := AreaMultiplier(req.Width, req.Height)

	finish, ok := finishMultipliers[strings.ToLower(req.Finish)]
	if !ok {
		finish = 1.0
	}

	hardware := 1.0
	if req.HardwareKit != nil {
		hardware = hardwareKitPremium
	}

	total := math.Round(base * area * finish * hardware)

	return Result{
		Total:     total,
		BasePrice: base,
		Breakdown: []BreakdownLine{
			{Label: "base", Amount: base},
			{Label: "area_multiplier", Amount: area},
			{Label: "finish_multiplier", Amount: finish},
			{Label: "hardware_multiplier", Amount: hardware},
		},
		Source: SourceLocal,
	}
}

// AreaMultiplier converts millimetre dimensions to square metres and clamps
// the result into [0.8, 1.5].
func AreaMultiplier(widthMM, heightMM int) float64 {
	area := float64(widthMM) * float64(heightMM) / 1_000_000
	return math.Max(minAreaMultiplier, math.Min(maxAreaMultiplier, area))
}
