package action

import (
	"context"
	"time"
)

// Clock answers the time and date intents.
type Clock struct {
	Now func() time.Time
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Clock) Time(context.Context, Request) (string, error) {
	return "The time is " + c.now().Format("03:04 PM"), nil
}

func (c Clock) Date(context.Context, Request) (string, error) {
	return "Today is " + c.now().Format("Monday, January 02, 2006"), nil
}
