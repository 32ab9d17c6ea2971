// Package similarity computes bounded, symmetric similarity scores between
// two users of a rating table, using only the items both users rated.
package similarity

import (
	"github.com/okian/usercf/internal/domain/model"
)

// Kernel names accepted by Lookup.
const (
	KernelPearson   = "pearson"
	KernelEuclidean = "euclidean"
)

// Func computes the similarity of users a and b over table.
type Func func(table model.RatingTable, a, b string) (float64, error)

// Kernel is a named similarity metric. The set of kernels is closed:
// obtain one with Lookup.
type Kernel interface {
	// Name returns the selector used to look the kernel up.
	Name() string
	// Similarity scores users a and b. It fails only with *UnknownUserError.
	Similarity(table model.RatingTable, a, b string) (float64, error)
}

type kernel struct {
	name string
	fn   Func
}

func (k kernel) Name() string { return k.name }

func (k kernel) Similarity(table model.RatingTable, a, b string) (float64, error) {
	return k.fn(table, a, b)
}

var kernels = map[string]Kernel{
	KernelPearson:   kernel{name: KernelPearson, fn: Pearson},
	KernelEuclidean: kernel{name: KernelEuclidean, fn: Euclidean},
}

// Lookup returns the kernel registered under name.
func Lookup(name string) (Kernel, error) {
	k, ok := kernels[name]
	if !ok {
		return nil, &UnsupportedKernelError{Kernel: name}
	}
	return k, nil
}

// Names returns the supported kernel names.
func Names() []string {
	return []string{KernelPearson, KernelEuclidean}
}

// coRatedVectors validates both users and returns their ratings over the
// co-rated items, aligned by ascending item id.
func coRatedVectors(table model.RatingTable, a, b string) (va, vb []float64, err error) {
	if !table.HasUser(a) {
		return nil, nil, &UnknownUserError{User: a}
	}
	if !table.HasUser(b) {
		return nil, nil, &UnknownUserError{User: b}
	}

	items := table.CoRated(a, b)
	va = make([]float64, len(items))
	vb = make([]float64, len(items))
	for i, item := range items {
		va[i] = table[a][item]
		vb[i] = table[b][item]
	}
	return va, vb, nil
}
