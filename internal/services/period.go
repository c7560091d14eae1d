package services

import (
	"time"

	"github.com/parksense/parksense-api/internal/types"
)

// DateLayout is the accepted format of period bounds
const DateLayout = "2006-01-02"

// InvalidDateMessage is reported for a period bound that is not a calendar date
const InvalidDateMessage = "Invalid date format. Please use YYYY-MM-DD"

// ParsePeriod turns two calendar dates into a UTC time range. The end date is
// inclusive, so the range stops one microsecond before the following midnight.
func ParsePeriod(start, end string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(DateLayout, start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, &types.ValidationError{Field: "start", Message: InvalidDateMessage}
	}
	to, err := time.ParseInLocation(DateLayout, end, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, &types.ValidationError{Field: "end", Message: InvalidDateMessage}
	}

	return from, to.AddDate(0, 0, 1).Add(-time.Microsecond), nil
}
