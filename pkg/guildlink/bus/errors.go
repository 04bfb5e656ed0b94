package bus

import "errors"

// ErrChannelFull is reported when a channel subscription drops a value.
var ErrChannelFull = errors.New("subscription channel is full")
