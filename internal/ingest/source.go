package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shorewatch/shorewatch/internal/models"
)

// Source fetches the current conditions for one beach from an upstream
// provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, beachID string) (*models.ConditionSnapshot, error)
}

// SimulatedSource generates plausible readings without an upstream
// dependency. Used in development and as a fallback provider.
type SimulatedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

func (s *SimulatedSource) Name() string { return "simulated" }

func (s *SimulatedSource) Fetch(_ context.Context, beachID string) (*models.ConditionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bacteria := models.BacteriaSafe
	switch roll := s.rng.Float64(); {
	case roll > 0.97:
		bacteria = models.BacteriaUnsafe
	case roll > 0.90:
		bacteria = models.BacteriaCaution
	}

	return &models.ConditionSnapshot{
		BeachID:       beachID,
		Timestamp:     s.now(),
		WaveHeightFt:  models.Float64(s.round(0.5 + s.rng.Float64()*7.5)),
		WindMph:       models.Float64(s.round(2 + s.rng.Float64()*23)),
		WindDirDeg:    models.Float64(float64(s.rng.Intn(360))),
		WaterTempF:    models.Float64(s.round(74 + s.rng.Float64()*8)),
		TideFt:        models.Float64(s.round(-0.5 + s.rng.Float64()*3)),
		BacteriaLevel: &bacteria,
		Source:        s.Name(),
	}, nil
}

func (s *SimulatedSource) round(v float64) float64 {
	return float64(int(v*10)) / 10
}
