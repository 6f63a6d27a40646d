package eligibility

import (
	"strings"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

// Service is the daily eligibility oracle. It decides whether a slot
// may start a negotiation right now (time window, pause flag, already
// fulfilled today) and records fulfillment when one completes.
type Service struct {
	mu        sync.Mutex
	settings  config.Settings
	paused    map[negotiation.Category]bool
	fulfilled map[negotiation.Category]fulfillment
	now       func() time.Time
	logger    zerolog.Logger
}

type fulfillment struct {
	conversationID uuid.UUID
	at             time.Time
}

// NewService creates the oracle from the settings book.
func NewService(settings config.Settings, logger zerolog.Logger) *Service {
	paused := make(map[negotiation.Category]bool)
	for name, cs := range settings.Categories {
		if cs.Paused {
			paused[negotiation.Category(name)] = true
		}
	}
	return &Service{
		settings:  settings,
		paused:    paused,
		fulfilled: make(map[negotiation.Category]fulfillment),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("service", "eligibility").Logger(),
	}
}

// CanStart reports whether a negotiation for the category may begin.
func (s *Service) CanStart(category negotiation.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.settings.Categories[string(category)]
	if !ok {
		return false
	}
	if s.paused[category] {
		return false
	}
	if f, ok := s.fulfilled[category]; ok && sameDay(f.at, s.now()) {
		return false
	}
	return s.windowOpen(category, cs.Window)
}

// TargetPrice returns the fixed price ceiling for a category.
func (s *Service) TargetPrice(category negotiation.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Categories[string(category)].TargetPrice
}

// AcceptedMesses returns the accepted messes for a category; nil means
// any mess is acceptable.
func (s *Service) AcceptedMesses(category negotiation.Category) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Categories[string(category)].Messes
}

// IsExempt reports whether a seller is exempt from the inactivity
// ceiling during resumption.
func (s *Service) IsExempt(sellerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.settings.ExemptSellers {
		if strings.EqualFold(id, sellerID) {
			return true
		}
	}
	return false
}

// MarkFulfilled records that a slot was purchased today.
func (s *Service) MarkFulfilled(category negotiation.Category, conversationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fulfilled[category] = fulfillment{conversationID: conversationID, at: s.now()}
	s.logger.Info().
		Str("category", string(category)).
		Str("conversation_id", conversationID.String()).
		Msg("slot fulfilled")
}

// MarkFailed records a failed negotiation; the slot stays open.
func (s *Service) MarkFailed(conversationID uuid.UUID, reason string) {
	s.logger.Info().
		Str("conversation_id", conversationID.String()).
		Str("reason", reason).
		Msg("negotiation failed; slot remains open")
}

// Pause stops a slot from starting new negotiations.
func (s *Service) Pause(category negotiation.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[category] = true
}

// Resume lifts a pause.
func (s *Service) Resume(category negotiation.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, category)
}

// windowOpen evaluates the category's time-window expression. An empty
// or invalid expression keeps the slot open; cutoffs are opt-in.
func (s *Service) windowOpen(category negotiation.Category, window string) bool {
	expr := strings.TrimSpace(window)
	if expr == "" {
		return true
	}
	ev, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		s.logger.Warn().Err(err).Str("category", string(category)).Msg("invalid window expression")
		return true
	}
	now := s.now()
	// govaluate compares numbers as float64.
	result, err := ev.Evaluate(map[string]interface{}{
		"hour":    float64(now.Hour()),
		"minute":  float64(now.Minute()),
		"weekday": float64(now.Weekday()),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("category", string(category)).Msg("window evaluation failed")
		return true
	}
	open, ok := result.(bool)
	if !ok {
		s.logger.Warn().Str("category", string(category)).Msg("window expression is not boolean")
		return true
	}
	return open
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
