package event

import "errors"

var ErrInvalidEvent = errors.New("event: invalid event")
