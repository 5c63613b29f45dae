package progression

import (
	"world-state-engine/internal/config"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

type curvePoint struct {
	ratio decimal.Decimal
	value decimal.Decimal
}

// Decay is the diminishing-returns multiplier applied to every XP entry.
// Below the soft cap it interpolates the configured breakpoints; above it the
// value falls off as tail / (1 + slope*(ratio-1)) and never reaches zero.
type Decay struct {
	points        []curvePoint
	tail          decimal.Decimal
	slope         decimal.Decimal
	fatigueWeight decimal.Decimal
}

func NewDecay(p config.ProgressionPolicy) Decay {
	points := make([]curvePoint, 0, len(p.DecayCurve))
	for _, pt := range p.DecayCurve {
		points = append(points, curvePoint{
			ratio: decimal.NewFromFloat(pt.Ratio),
			value: decimal.NewFromFloat(pt.Value),
		})
	}
	if len(points) == 0 {
		points = append(points, curvePoint{ratio: decimal.Zero, value: one})
	}
	return Decay{
		points:        points,
		tail:          decimal.NewFromFloat(p.TailValue),
		slope:         decimal.NewFromFloat(p.TailSlope),
		fatigueWeight: decimal.NewFromFloat(p.FatigueWeight),
	}
}

// Curve returns the day-load component for dayTotal/softCap.
func (d Decay) Curve(ratio decimal.Decimal) decimal.Decimal {
	if !ratio.IsPositive() {
		return d.points[0].value
	}
	if ratio.GreaterThan(one) {
		return d.tail.Div(one.Add(d.slope.Mul(ratio.Sub(one))))
	}
	for i := 1; i < len(d.points); i++ {
		hi := d.points[i]
		if ratio.LessThanOrEqual(hi.ratio) {
			lo := d.points[i-1]
			frac := ratio.Sub(lo.ratio).Div(hi.ratio.Sub(lo.ratio))
			return lo.value.Add(hi.value.Sub(lo.value).Mul(frac))
		}
	}
	return d.points[len(d.points)-1].value
}

// FatigueFactor is 1 / (1 + weight*fatigue).
func (d Decay) FatigueFactor(fatigue decimal.Decimal) decimal.Decimal {
	if !fatigue.IsPositive() {
		return one
	}
	return one.Div(one.Add(d.fatigueWeight.Mul(fatigue)))
}

// Factor combines the day-load curve and the fatigue factor. A non-positive
// soft cap disables the curve.
func (d Decay) Factor(priorFatigue, dayTotal, softCap decimal.Decimal) decimal.Decimal {
	ratio := decimal.Zero
	if softCap.IsPositive() {
		ratio = dayTotal.Div(softCap)
	}
	return d.Curve(ratio).Mul(d.FatigueFactor(priorFatigue))
}
