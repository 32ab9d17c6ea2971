package similarity

import (
	"math"

	"github.com/okian/usercf/internal/domain/model"
	"gonum.org/v1/gonum/floats"
)

// Pearson returns the Pearson correlation coefficient of the two users'
// ratings on co-rated items, in [-1, 1] up to rounding.
//
// It returns 0 when the users share no items or when either side's co-rated
// ratings have zero variance.
func Pearson(table model.RatingTable, a, b string) (float64, error) {
	va, vb, err := coRatedVectors(table, a, b)
	if err != nil {
		return 0, err
	}
	if len(va) == 0 {
		return 0, nil
	}
	// Constant ratings have zero variance, but Sxx computed from sums may
	// round to a tiny non-zero value.
	if isConstant(va) || isConstant(vb) {
		return 0, nil
	}

	n := float64(len(va))
	sumA, sumB := floats.Sum(va), floats.Sum(vb)
	sqSumA, sqSumB := floats.Dot(va, va), floats.Dot(vb, vb)
	productSum := floats.Dot(va, vb)

	sxy := productSum - sumA*sumB/n
	sxx := sqSumA - sumA*sumA/n
	syy := sqSumB - sumB*sumB/n

	if sxx*syy <= 0 {
		return 0, nil
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

func isConstant(v []float64) bool {
	return floats.Min(v) == floats.Max(v)
}
