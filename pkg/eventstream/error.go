package eventstream

import "errors"

var (
	// ErrPublish is returned when an event could not be delivered.
	ErrPublish = errors.New("event publish failed")

	// ErrClosed is returned when publishing on a closed publisher.
	ErrClosed = errors.New("publisher closed")
)
