package account

import (
	"autopost-server-go/internal/domain/schedule"
)

// Credential is one posting account with its publish schedule.
type Credential struct {
	Username        string
	Password        string
	StartTime       schedule.TimeOfDay
	IntervalMinutes int
}

// Input is the operator-facing shape accepted by the upsert operation.
// StartTime is "HH:MM" and Interval is "H:MM" (hours:minutes of interval).
type Input struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	StartTime string `json:"start_time"`
	Interval  string `json:"interval"`
}

// ParseInput validates the raw input and converts it into a Credential.
func ParseInput(in Input) (Credential, error) {
	start, err := schedule.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return Credential{}, err
	}
	interval, err := schedule.ParseInterval(in.Interval)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Username:        in.Username,
		Password:        in.Password,
		StartTime:       start,
		IntervalMinutes: interval,
	}, nil
}
