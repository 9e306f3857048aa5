package auth

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the window,
// given as a duration pattern, that ends at now
func IsWithinThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	return t.After(now.Add(-duration)), nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(now, t, pattern)
	if err != nil {
		return false, err
	}

	return !valid, nil
}
