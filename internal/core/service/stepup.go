package service

import (
	"time"

	"github.com/thibou/auth-api/internal/core/domain"
)

// StepUpGate rejects verified tokens that are older than the freshness window.
// It holds no state besides its configuration.
type StepUpGate struct {
	window time.Duration
	now    func() time.Time
}

func NewStepUpGate(window time.Duration) *StepUpGate {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &StepUpGate{window: window, now: time.Now}
}

// Window returns the configured freshness window.
func (g *StepUpGate) Window() time.Duration { return g.window }

// Check returns a *domain.StepUpRequiredError when claims were issued more than
// the window ago. An age equal to the window still passes.
func (g *StepUpGate) Check(claims *domain.Claims) error {
	age := g.now().Sub(claims.IssuedAt)
	if age > g.window {
		return &domain.StepUpRequiredError{
			IssuedAt: claims.IssuedAt,
			Age:      age,
			MaxAge:   g.window,
		}
	}
	return nil
}
