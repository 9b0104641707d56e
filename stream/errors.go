package stream

import (
	"errors"
	"fmt"
)

// ErrProtocolLivelock is returned when a device makes no progress for the
// configured number of consecutive cycles.
var ErrProtocolLivelock = errors.New("protocol livelock")

// Error is a fatal driver failure with the bus position it happened at.
type Error struct {
	Direction Direction
	Device    string
	Cycle     uint64
	Slot      int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s driver (%s): cycle %d, slot %d: %v",
		e.Direction, e.Device, e.Cycle, e.Slot, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
