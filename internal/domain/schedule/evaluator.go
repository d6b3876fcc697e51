package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"autopost-server-go/internal/platform/errors"
)

// TimeOfDay is a wall-clock start time with minute granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses a 24-hour "HH:MM" value.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, errors.New(errors.KindSchedule, "schedule.parse_time",
			fmt.Sprintf("start time %q is not in HH:MM format", value))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, errors.New(errors.KindSchedule, "schedule.parse_time",
			fmt.Sprintf("start time %q has an invalid hour", value))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, errors.New(errors.KindSchedule, "schedule.parse_time",
			fmt.Sprintf("start time %q has an invalid minute", value))
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseInterval converts an "H:MM" hours:minutes interval into total minutes.
// The result must be positive; a zero interval is a configuration error.
func ParseInterval(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, errors.New(errors.KindSchedule, "schedule.parse_interval",
			fmt.Sprintf("interval %q is not in H:MM format", value))
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, errors.New(errors.KindSchedule, "schedule.parse_interval",
			fmt.Sprintf("interval %q has invalid hours", value))
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, errors.New(errors.KindSchedule, "schedule.parse_interval",
			fmt.Sprintf("interval %q has invalid minutes", value))
	}
	total := hours*60 + minutes
	if total <= 0 {
		return 0, errors.New(errors.KindSchedule, "schedule.parse_interval",
			"interval must be at least one minute")
	}
	return total, nil
}

// IsDue reports whether now is a publish instant for the given schedule.
//
// The schedule anchor is now's date combined with start; if that instant has
// not yet occurred today it is rolled back exactly one day, treating the
// schedule as having begun yesterday. An instant is due when the whole
// minutes elapsed since the anchor divide evenly by intervalMinutes.
//
// The function is pure: same inputs, same answer, no I/O. Callers must invoke
// it once per minute; it keeps no last-fired state.
func IsDue(start TimeOfDay, intervalMinutes int, now time.Time) (bool, error) {
	if intervalMinutes <= 0 {
		return false, errors.New(errors.KindSchedule, "schedule.is_due",
			fmt.Sprintf("interval must be positive, got %d", intervalMinutes))
	}

	anchor := time.Date(now.Year(), now.Month(), now.Day(), start.Hour, start.Minute, 0, 0, now.Location())
	if anchor.After(now) {
		anchor = anchor.AddDate(0, 0, -1)
	}

	elapsed := int(now.Sub(anchor).Minutes())
	return elapsed%intervalMinutes == 0, nil
}
