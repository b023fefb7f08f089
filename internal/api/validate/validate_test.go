package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencourt/courtwatch/internal/model"
)

func TestEmail(t *testing.T) {
	for _, v := range []string{"player@example.com", "a.b+c@sub.domain.io"} {
		assert.NoError(t, Email(v), v)
	}
	for _, v := range []string{"", "nope", "a@b", "two@@example.com", "has space@example.com"} {
		assert.Error(t, Email(v), v)
	}
}

func TestClockTime(t *testing.T) {
	for _, v := range []string{"00:00", "9:30", "09:30", "23:59"} {
		assert.NoError(t, ClockTime(v), v)
	}
	for _, v := range []string{"", "24:00", "12:60", "noon", "12", "12:5"} {
		assert.Error(t, ClockTime(v), v)
	}
}

func validSub() *model.Subscription {
	return &model.Subscription{
		OwnerID:                    "owner-1",
		Email:                      "player@example.com",
		SourcePreferences:          []model.SourcePreference{{SourceID: "seb-arena"}},
		PreferredTimes:             []model.PreferredTime{{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"}},
		MinSlotDurationMinutes:     60,
		MaxNotificationsPerDay:     3,
		NotificationFrequencyHours: 24,
	}
}

func TestSubscriptionValid(t *testing.T) {
	assert.NoError(t, Subscription(validSub()))
}

func TestSubscriptionBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Subscription)
	}{
		{"no owner", func(s *model.Subscription) { s.OwnerID = "" }},
		{"bad email", func(s *model.Subscription) { s.Email = "nope" }},
		{"no sources", func(s *model.Subscription) { s.SourcePreferences = nil }},
		{"empty source id", func(s *model.Subscription) { s.SourcePreferences[0].SourceID = "" }},
		{"no preferred times", func(s *model.Subscription) { s.PreferredTimes = nil }},
		{"day of week low", func(s *model.Subscription) { s.PreferredTimes[0].DayOfWeek = -1 }},
		{"day of week high", func(s *model.Subscription) { s.PreferredTimes[0].DayOfWeek = 7 }},
		{"bad start time", func(s *model.Subscription) { s.PreferredTimes[0].StartTime = "25:00" }},
		{"start not before end", func(s *model.Subscription) { s.PreferredTimes[0].EndTime = "09:00" }},
		{"duration below 30", func(s *model.Subscription) { s.MinSlotDurationMinutes = 29 }},
		{"duration above 480", func(s *model.Subscription) { s.MinSlotDurationMinutes = 481 }},
		{"cap below 1", func(s *model.Subscription) { s.MaxNotificationsPerDay = 0 }},
		{"cap above 10", func(s *model.Subscription) { s.MaxNotificationsPerDay = 11 }},
		{"frequency below 1", func(s *model.Subscription) { s.NotificationFrequencyHours = 0 }},
		{"frequency above 168", func(s *model.Subscription) { s.NotificationFrequencyHours = 169 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSub()
			tt.mutate(s)
			err := Subscription(s)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestSubscriptionBoundaryValuesAccepted(t *testing.T) {
	s := validSub()
	s.MinSlotDurationMinutes = 30
	s.MaxNotificationsPerDay = 10
	s.NotificationFrequencyHours = 168
	assert.NoError(t, Subscription(s))

	s = validSub()
	s.MinSlotDurationMinutes = 480
	s.PreferredTimes[0] = model.PreferredTime{DayOfWeek: 6, StartTime: "00:00", EndTime: "23:59"}
	assert.NoError(t, Subscription(s))
}

func TestSubscriptionSingleDigitHours(t *testing.T) {
	s := validSub()
	s.PreferredTimes[0] = model.PreferredTime{DayOfWeek: 1, StartTime: "9:00", EndTime: "10:00"}
	assert.NoError(t, Subscription(s))

	s = validSub()
	s.PreferredTimes[0] = model.PreferredTime{DayOfWeek: 1, StartTime: "10:00", EndTime: "9:30"}
	assert.ErrorIs(t, Subscription(s), model.ErrValidation)
}
