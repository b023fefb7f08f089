package validate

import (
	"fmt"
	"regexp"

	"github.com/opencourt/courtwatch/internal/model"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// clockRx matches "H:MM" or "HH:MM", 00:00 through 23:59.
var clockRx = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Email validates an email address.
func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

// ClockTime validates an "HH:MM" string.
func ClockTime(v string) error {
	if !clockRx.MatchString(v) {
		return fmt.Errorf("invalid time %q; expected HH:MM", v)
	}
	return nil
}

// clockMinutes converts an already-validated clock string to minutes since
// midnight. Hours may be one or two digits, so string comparison is not
// order-preserving.
func clockMinutes(v string) int {
	var h, m int
	fmt.Sscanf(v, "%d:%d", &h, &m)
	return h*60 + m
}

// Subscription checks every field constraint on a subscription create
// request. Bounds follow the product limits: slots between 30 minutes and
// 8 hours, at most 10 alerts per day, frequency between 1 hour and 1 week.
func Subscription(s *model.Subscription) error {
	wrap := func(err error) error {
		return fmt.Errorf("%w: %s", model.ErrValidation, err)
	}
	if s.OwnerID == "" {
		return wrap(fmt.Errorf("ownerId is required"))
	}
	if err := Email(s.Email); err != nil {
		return wrap(err)
	}
	if len(s.SourcePreferences) == 0 {
		return wrap(fmt.Errorf("at least one source preference is required"))
	}
	for _, p := range s.SourcePreferences {
		if p.SourceID == "" {
			return wrap(fmt.Errorf("source preference missing sourceId"))
		}
	}
	if len(s.PreferredTimes) == 0 {
		return wrap(fmt.Errorf("at least one preferred time is required"))
	}
	for _, p := range s.PreferredTimes {
		if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
			return wrap(fmt.Errorf("dayOfWeek %d out of range 0-6", p.DayOfWeek))
		}
		if err := ClockTime(p.StartTime); err != nil {
			return wrap(err)
		}
		if err := ClockTime(p.EndTime); err != nil {
			return wrap(err)
		}
		if clockMinutes(p.StartTime) >= clockMinutes(p.EndTime) {
			return wrap(fmt.Errorf("preferred time %s must start before %s ends", p.StartTime, p.EndTime))
		}
	}
	if s.MinSlotDurationMinutes < 30 || s.MinSlotDurationMinutes > 480 {
		return wrap(fmt.Errorf("minSlotDurationMinutes must be between 30 and 480"))
	}
	if s.MaxNotificationsPerDay < 1 || s.MaxNotificationsPerDay > 10 {
		return wrap(fmt.Errorf("maxNotificationsPerDay must be between 1 and 10"))
	}
	if s.NotificationFrequencyHours < 1 || s.NotificationFrequencyHours > 168 {
		return wrap(fmt.Errorf("notificationFrequencyHours must be between 1 and 168"))
	}
	return nil
}
