package intros

import (
	"math/rand/v2"

	"trailerreel/models"
	"trailerreel/services/library"
)

// SelectIntros picks up to count random ids and maps them to library item ids.
// A nil rnd uses the global source.
func SelectIntros(ids []string, count int, rnd *rand.Rand) []models.IntroInfo {
	if count <= 0 || len(ids) == 0 {
		return []models.IntroInfo{}
	}

	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	shuffle := rand.Shuffle
	if rnd != nil {
		shuffle = rnd.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := min(count, len(shuffled))
	intros := make([]models.IntroInfo, 0, n)
	for _, id := range shuffled[:n] {
		intros = append(intros, models.IntroInfo{ItemID: library.ItemID(id)})
	}
	return intros
}
