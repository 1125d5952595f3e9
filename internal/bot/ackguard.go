package bot

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// armAckDeadline schedules fire to run once deadline has elapsed since start.
// Calling the returned stop function cancels it. A deadline that has already
// passed fires synchronously.
func armAckDeadline(clock clockwork.Clock, start time.Time, deadline time.Duration, fire func()) (stop func()) {
	if deadline <= 0 {
		return func() {}
	}
	remaining := deadline - clock.Since(start)
	if remaining <= 0 {
		fire()
		return func() {}
	}
	t := clock.AfterFunc(remaining, fire)
	return func() { t.Stop() }
}
