package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/weighted-region-layer/pkg/costmap"
)

// ErrInvalidPolicy is returned by Validate for unusable cost policies.
var ErrInvalidPolicy = errors.New("invalid cost policy")

// CostPolicy maps a region weight to a cell cost. Implementations must be
// monotonic non-decreasing in the weight.
type CostPolicy interface {
	Cost(weight float64) uint8
}

// LinearPolicy maps weights with cost = clamp(round((w-Neutral)*Scale), 0, MaxCost).
// The neutral weight maps to FreeSpace, which max-combination never applies.
type LinearPolicy struct {
	Neutral float64
	Scale   float64
	MaxCost uint8
}

// DefaultPolicy maps a weight of N to cost N, saturating at LethalObstacle.
func DefaultPolicy() LinearPolicy {
	return LinearPolicy{
		Neutral: 0,
		Scale:   1,
		MaxCost: costmap.LethalObstacle,
	}
}

// Validate checks that the policy is monotonic and stays in the cost domain.
func (p LinearPolicy) Validate() error {
	if !(p.Scale > 0) || math.IsInf(p.Scale, 0) {
		return fmt.Errorf("%w: scale %v must be positive and finite", ErrInvalidPolicy, p.Scale)
	}
	if math.IsNaN(p.Neutral) || math.IsInf(p.Neutral, 0) {
		return fmt.Errorf("%w: neutral weight %v must be finite", ErrInvalidPolicy, p.Neutral)
	}
	if p.MaxCost == costmap.NoInformation {
		return fmt.Errorf("%w: max cost cannot be NoInformation", ErrInvalidPolicy)
	}
	return nil
}

// Cost converts a weight to a cost.
func (p LinearPolicy) Cost(weight float64) uint8 {
	v := math.Round((weight - p.Neutral) * p.Scale)
	switch {
	case math.IsNaN(v) || v <= 0:
		return costmap.FreeSpace
	case v >= float64(p.MaxCost):
		return p.MaxCost
	default:
		return uint8(v)
	}
}
