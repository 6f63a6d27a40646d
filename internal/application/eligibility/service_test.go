package eligibility

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
)

func testSettings() config.Settings {
	return config.Settings{
		Categories: map[string]config.CategorySettings{
			"LUNCH": {
				TargetPrice: 60,
				Messes:      []string{"north mess"},
				Window:      "hour >= 9 && hour < 12",
			},
			"DINNER": {
				TargetPrice: 70,
			},
		},
		ExemptSellers: []string{"Roommate"},
	}
}

func atHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
	}
}

func TestService_CanStartWindow(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())

	svc.now = atHour(10)
	assert.True(t, svc.CanStart(negotiation.CategoryLunch))

	svc.now = atHour(14)
	assert.False(t, svc.CanStart(negotiation.CategoryLunch), "outside the lunch window")

	// No window expression keeps the slot always open.
	assert.True(t, svc.CanStart(negotiation.CategoryDinner))
}

func TestService_UnknownCategory(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())
	assert.False(t, svc.CanStart(negotiation.Category("BREAKFAST")))
}

func TestService_FulfilledToday(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())
	svc.now = atHour(10)

	svc.MarkFulfilled(negotiation.CategoryLunch, uuid.New())
	assert.False(t, svc.CanStart(negotiation.CategoryLunch), "fulfilled slot is closed for the day")
	assert.True(t, svc.CanStart(negotiation.CategoryDinner), "other slot unaffected")

	// Next day the slot reopens.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)
	}
	assert.True(t, svc.CanStart(negotiation.CategoryLunch))
}

func TestService_FailureKeepsSlotOpen(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())
	svc.now = atHour(10)

	svc.MarkFailed(uuid.New(), "offer withdrawn")
	assert.True(t, svc.CanStart(negotiation.CategoryLunch))
}

func TestService_PauseResume(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())
	svc.now = atHour(10)

	svc.Pause(negotiation.CategoryLunch)
	assert.False(t, svc.CanStart(negotiation.CategoryLunch))

	svc.Resume(negotiation.CategoryLunch)
	assert.True(t, svc.CanStart(negotiation.CategoryLunch))
}

func TestService_InvalidWindowStaysOpen(t *testing.T) {
	settings := testSettings()
	cs := settings.Categories["LUNCH"]
	cs.Window = "hour >>> nonsense"
	settings.Categories["LUNCH"] = cs

	svc := NewService(settings, zerolog.Nop())
	svc.now = atHour(3)
	assert.True(t, svc.CanStart(negotiation.CategoryLunch))
}

func TestService_IsExempt(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())

	assert.True(t, svc.IsExempt("roommate"), "matching is case-insensitive")
	assert.False(t, svc.IsExempt("stranger"))
}

func TestService_TargetPriceAndMesses(t *testing.T) {
	svc := NewService(testSettings(), zerolog.Nop())

	assert.Equal(t, 60, svc.TargetPrice(negotiation.CategoryLunch))
	assert.Equal(t, []string{"north mess"}, svc.AcceptedMesses(negotiation.CategoryLunch))
	assert.Nil(t, svc.AcceptedMesses(negotiation.CategoryDinner))
}
