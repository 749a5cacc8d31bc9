// Package schedule provides cron expression handling for periodic
// maintenance jobs, such as the player registry idle sweep.
package schedule

import (
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// NextRunAfter returns the next run time of a cron expression after
// a specific time, in UTC.
func NextRunAfter(cron string, after time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return expr.Next(after.UTC()), nil
}

// ValidateCron returns an error if the cron expression does not parse.
func ValidateCron(cron string) error {
	_, err := cronexpr.Parse(cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
