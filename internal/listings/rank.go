package listings

import (
	"cmp"
	"math"
	"slices"

	"github.com/5w1tchy/book-thrift/internal/models"
)

// Rank orders listings nearest first when distanceRequested is set. Listings
// without a distance go last in their original order. The slice is sorted in
// place and returned.
func Rank(ls []models.Listing, distanceRequested bool) []models.Listing {
	if !distanceRequested {
		return ls
	}
	slices.SortStableFunc(ls, func(a, b models.Listing) int {
		return cmp.Compare(distanceKey(a), distanceKey(b))
	})
	return ls
}

func distanceKey(l models.Listing) float64 {
	if l.DistanceMeters == nil {
		return math.Inf(1)
	}
	return *l.DistanceMeters
}
