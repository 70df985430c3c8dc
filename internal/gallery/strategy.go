package gallery

import (
	"math/rand"

	"dailywall/internal/domain"
)

// SelectionStrategy picks the target of a random jump. Implementations
// return the index of the chosen item, or false when nothing qualifies.
type SelectionStrategy interface {
	Pick(items []domain.ImageRecord) (int, bool)
}

// AnyRandom selects uniformly over the whole collection
type AnyRandom struct{}

// Pick returns a uniformly random index, or false on an empty collection
func (AnyRandom) Pick(items []domain.ImageRecord) (int, bool) {
	if len(items) == 0 {
		return 0, false
	}
	return rand.Intn(len(items)), true
}

// FavoriteRandom selects uniformly over the items whose local path is in the
// favorite set. The set is read through a func so membership stays live
// across settings changes without rebuilding the strategy.
type FavoriteRandom struct {
	Favorites func() map[string]struct{}
}

// Pick returns a uniformly random favorited index, or false when the
// intersection is empty
func (f FavoriteRandom) Pick(items []domain.ImageRecord) (int, bool) {
	favs := f.Favorites()
	if len(favs) == 0 {
		return 0, false
	}

	var candidates []int
	for i, item := range items {
		if _, ok := favs[item.LocalPath]; ok {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[rand.Intn(len(candidates))], true
}
