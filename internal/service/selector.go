package service

import (
	"math/rand"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
)

// pickFairTutor selects a tutor from candidates with the minimum active
// booking load, breaking ties uniformly at random. Candidates absent from
// loads count as zero. Returns nil when candidates is empty.
//
// The randomness source is injected so callers can seed it for
// deterministic tests.
func pickFairTutor(candidates []models.Tutor, loads map[string]int, rng *rand.Rand) *models.Tutor {
	if len(candidates) == 0 {
		return nil
	}

	minLoad := loads[candidates[0].ID]
	for _, tutor := range candidates[1:] {
		if load := loads[tutor.ID]; load < minLoad {
			minLoad = load
		}
	}

	tied := make([]models.Tutor, 0, len(candidates))
	for _, tutor := range candidates {
		if loads[tutor.ID] == minLoad {
			tied = append(tied, tutor)
		}
	}

	chosen := tied[rng.Intn(len(tied))]
	return &chosen
}
