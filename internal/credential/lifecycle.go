package credential

import "time"

// ChangeRequired reports spec §4.3's age invariant:
// change_required ⇔ max_age_days set ∧ now − changed_at > max_age_days.
func ChangeRequired(policy Policy, changedAt time.Time, now time.Time) bool {
	if policy.MaxAgeDays <= 0 {
		return false
	}
	return now.Sub(changedAt) > time.Duration(policy.MaxAgeDays)*24*time.Hour
}

// CanChange reports spec §4.3's minimum-age invariant:
// can_change ⇔ min_age_hours not set ∨ now − changed_at ≥ min_age_hours.
func CanChange(policy Policy, changedAt time.Time, now time.Time) bool {
	if policy.MinAgeHours <= 0 {
		return true
	}
	return now.Sub(changedAt) >= time.Duration(policy.MinAgeHours)*time.Hour
}

// ShouldLock reports spec §4.3's lockout invariant:
// should_lock ⇔ failed_attempts ≥ lockout_threshold.
func ShouldLock(policy Policy, failedAttempts int) bool {
	return failedAttempts >= policy.LockoutThreshold
}

// LockUntil computes the unlock timestamp for a just-triggered lockout.
func LockUntil(policy Policy, now time.Time) time.Time {
	return now.Add(time.Duration(policy.LockoutDurationMinutes) * time.Minute)
}
