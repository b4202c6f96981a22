package clock

import "time"

// Timer provides the current time for duration measurements.
type Timer interface {
	Now() time.Time
}

// Clock reads the wall clock.
type Clock struct{}

func New() Clock {
	return Clock{}
}

func (Clock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on timer since start.
func Since(timer Timer, start time.Time) time.Duration {
	return timer.Now().Sub(start)
}

// OrDefault returns timer, or the wall clock when timer is nil.
func OrDefault(timer Timer) Timer {
	if timer == nil {
		return Clock{}
	}

	return timer
}
