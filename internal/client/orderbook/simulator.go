package orderbook

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Simulator is a dev/test double that books installments with a fixed
// success rate. Not for production use.
type Simulator struct {
	SuccessRate float64

	mu   sync.Mutex
	rng  *rand.Rand
	seq  int
}

func NewSimulator(successRate float64, seed int64) *Simulator {
	if successRate <= 0 || successRate > 1 {
		successRate = 0.8
	}
	return &Simulator{
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *Simulator) Execute(ctx context.Context, req ExecutionRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.rng.Float64() < s.SuccessRate {
		return Result{
			Success:     true,
			ReferenceID: fmt.Sprintf("SIM-%s-%06d", req.PlanType, s.seq),
		}, nil
	}
	return Result{
		Success: false,
		Reason:  "Insufficient funds",
	}, nil
}
