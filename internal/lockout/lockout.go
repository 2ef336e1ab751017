// Package lockout implements the login-attempt policy: repeated failures
// accumulate on the account and trip a temporary lock once they reach a
// threshold.  The package only computes state transitions; it never rejects
// a login itself.  Callers check Locked before verifying a password and
// persist the state returned by Fail or Succeed after the outcome is known.
package lockout

import "time"

// State is the per-identity counter pair stored on the user record.
type State struct {
	Attempts  int        // consecutive failed logins
	LockUntil *time.Time // set while the account is locked
}

// Locked reports whether the account is currently locked, i.e. LockUntil is
// set and still in the future.
func Locked(s State, now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}

// Fail applies one failed login attempt.  A lock that has already expired
// starts a fresh window: the counter restarts at 1 and the stale lock is
// cleared.  Otherwise the counter increments, and reaching the threshold on
// an unlocked account sets LockUntil = now + lockFor.  An account that is
// already locked keeps counting but its lock is not extended.
func Fail(s State, now time.Time, threshold int, lockFor time.Duration) State {
	if s.LockUntil != nil && !s.LockUntil.After(now) {
		return State{Attempts: 1}
	}
	next := State{Attempts: s.Attempts + 1, LockUntil: s.LockUntil}
	if next.Attempts >= threshold && !Locked(s, now) {
		until := now.Add(lockFor)
		next.LockUntil = &until
	}
	return next
}

// Succeed clears the counters after a successful login.
func Succeed() State {
	return State{}
}
