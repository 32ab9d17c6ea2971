package similarity

import (
	"github.com/okian/usercf/internal/domain/model"
	"gonum.org/v1/gonum/floats"
)

// Euclidean returns 1 / (1 + d) where d is the Euclidean distance between
// the two users' ratings on co-rated items. Identical ratings score 1 and
// the score tends to 0 as the distance grows. Users without co-rated items
// score 0.
func Euclidean(table model.RatingTable, a, b string) (float64, error) {
	va, vb, err := coRatedVectors(table, a, b)
	if err != nil {
		return 0, err
	}
	if len(va) == 0 {
		return 0, nil
	}

	distance := floats.Distance(va, vb, 2)
	return 1 / (1 + distance), nil
}
