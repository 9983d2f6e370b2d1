package ui

import (
	"github.com/wagoodman/go-partybus"
)

// UI renders pipeline progress from bus events: Setup is called before the
// run starts with an unsubscribe callback for when the final event has been
// handled, and Teardown runs after the event loop drains.
type UI interface {
	Setup(unsubscribe func() error) error
	partybus.Handler
	Teardown(force bool) error
}
