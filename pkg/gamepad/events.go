package gamepad

// Event is one per-object change notification. Events are constructed and
// forwarded, never stored by this package.
type Event struct {
	Index int    // enumeration index of the changed object
	Value int32  // calibrated value after the change
	Time  uint32 // milliseconds, monotonic per device
	Seq   uint32 // strictly increasing per device
}

// EventSink receives change events one at a time plus an edge-triggered
// wake signal once per tick that produced at least one event.
type EventSink interface {
	QueueEvent(Event)
	Wake()
}

// MaxButtons is the widest button array either layout uses.
const MaxButtons = 12

// POVCentered is the hat value reported when no direction is pressed.
const POVCentered int32 = -1

// State is the last-applied calibrated device snapshot. Axis slots unused by
// the active layout stay zero. Button slots hold 0x00 or 0x80.
type State struct {
	X, Y, Z    int32
	Rx, Ry, Rz int32
	POV        int32
	Buttons    [MaxButtons]byte
}
