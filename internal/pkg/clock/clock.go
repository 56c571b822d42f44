// Package clock abstracts time.Now so expiry and rate-window logic can be
// tested against a fixed instant.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always reports the same instant. Test use only.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }
