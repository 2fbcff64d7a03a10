package gamepad

import (
	"errors"

	"padbridge/pkg/protocol"
)

// Variant selects one of the two fixed button/axis layouts. It is chosen
// once at acquire time from the remote's capability flags and held for the
// whole session.
type Variant uint8

const (
	// VariantStandard is the classic joystick layout: X/Y/Z/Rz axes, 12
	// buttons behind a fixed permutation, one hat.
	VariantStandard Variant = iota
	// VariantXInput is the Xbox-style layout: X/Y/Rx/Ry stick axes, a merged
	// trigger axis on Z, 10 buttons mapped by identity, one hat.
	VariantXInput
)

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantXInput:
		return "xinput"
	}
	return "unknown"
}

// ErrNoMapper means the remote's capability flags select neither layout.
var ErrNoMapper = errors.New("gamepad: capabilities select no mapping variant")

// SelectVariant picks the layout for a capability set. Standard wins when
// both mapper bits are set.
func SelectVariant(caps protocol.Capabilities) (Variant, error) {
	switch {
	case caps.Has(protocol.CapMapperStandard):
		return VariantStandard, nil
	case caps.Has(protocol.CapMapperXInput):
		return VariantXInput, nil
	}
	return 0, ErrNoMapper
}

// Raw button bit positions in the wire bitmask.
const (
	BitButtonA      = 0
	BitButtonB      = 1
	BitButtonX      = 2
	BitButtonY      = 3
	BitButtonL1     = 4
	BitButtonR1     = 5
	BitButtonSelect = 6
	BitButtonStart  = 7
	BitButtonL3     = 8
	BitButtonR3     = 9
	BitButtonL2     = 10
	BitButtonR2     = 11
)

// standardButtonSlots maps wire bit position to logical button slot for the
// standard layout.
var standardButtonSlots = [12]uint8{
	BitButtonA:      1,
	BitButtonB:      2,
	BitButtonX:      0,
	BitButtonY:      3,
	BitButtonL1:     4,
	BitButtonR1:     5,
	BitButtonL2:     6,
	BitButtonR2:     7,
	BitButtonSelect: 8,
	BitButtonStart:  9,
	BitButtonL3:     10,
	BitButtonR3:     11,
}

// Mapper consumes decoded raw samples, updates the calibrated snapshot and
// emits change events. Exactly two implementations exist, one per Variant.
type Mapper interface {
	Variant() Variant
	// Apply diffs sample against the previous one, emits events for every
	// changed object and reports whether anything changed at all.
	Apply(sample *protocol.GamepadState, e *emitter) bool
	// State returns the calibrated snapshot owned by this mapper.
	State() *State
}

// emitter carries the per-tick event context: calibration lookups, the sink,
// the tick timestamp and the device sequence counter.
type emitter struct {
	table *PropertyTable
	sink  EventSink
	time  uint32
	seq   *uint32
}

func (e *emitter) emit(id ObjectID, value int32) {
	index := e.table.IndexOf(id)
	if index < 0 {
		return
	}
	*e.seq++
	e.sink.QueueEvent(Event{Index: index, Value: value, Time: e.time, Seq: *e.seq})
}

func newMapper(v Variant) Mapper {
	base := mapperBase{}
	base.state.POV = POVCentered
	if v == VariantStandard {
		return &standardMapper{mapperBase: base}
	}
	return &xinputMapper{mapperBase: base}
}

type mapperBase struct {
	prev  protocol.GamepadState
	state State
}

func (m *mapperBase) State() *State { return &m.state }

// applyAxis updates dst from a stick sample when it changed since the last
// tick and emits the calibrated value for the given axis instance.
func (m *mapperBase) applyAxis(instance uint8, raw int16, prev *int16, dst *int32, e *emitter) bool {
	if raw == *prev {
		return false
	}
	*prev = raw
	*dst = ScaleAxisValue(int32(raw), e.table.Lookup(AxisID(instance)))
	e.emit(AxisID(instance), *dst)
	return true
}

// applyPOV translates the raw dpad into hundredths of a degree: 0..7
// clockwise from up becomes dpad*4500, -1 stays centered.
func (m *mapperBase) applyPOV(raw int8, e *emitter) bool {
	if raw == m.prev.Dpad {
		return false
	}
	m.prev.Dpad = raw
	if raw != -1 {
		m.state.POV = int32(raw) * 4500
	} else {
		m.state.POV = POVCentered
	}
	e.emit(POVID(0), m.state.POV)
	return true
}

type standardMapper struct {
	mapperBase
}

func (m *standardMapper) Variant() Variant { return VariantStandard }

func (m *standardMapper) Apply(s *protocol.GamepadState, e *emitter) bool {
	changed := m.applyAxis(0, s.LX, &m.prev.LX, &m.state.X, e)
	changed = m.applyAxis(1, s.LY, &m.prev.LY, &m.state.Y, e) || changed
	changed = m.applyAxis(2, s.RX, &m.prev.RX, &m.state.Z, e) || changed
	changed = m.applyAxis(3, s.RY, &m.prev.RY, &m.state.Rz, e) || changed

	if s.Buttons != m.prev.Buttons {
		m.prev.Buttons = s.Buttons
		// Any bitmask change recomputes and re-emits all 12 slots, not only
		// the ones that flipped.
		for bit, slot := range standardButtonSlots {
			var v byte
			if s.Buttons&(1<<bit) != 0 {
				v = 0x80
			}
			m.state.Buttons[slot] = v
			e.emit(ButtonID(slot), int32(v))
		}
		changed = true
	}

	return m.applyPOV(s.Dpad, e) || changed
}

type xinputMapper struct {
	mapperBase
}

func (m *xinputMapper) Variant() Variant { return VariantXInput }

func (m *xinputMapper) Apply(s *protocol.GamepadState, e *emitter) bool {
	changed := m.applyAxis(0, s.LX, &m.prev.LX, &m.state.X, e)
	changed = m.applyAxis(1, s.LY, &m.prev.LY, &m.state.Y, e) || changed
	changed = m.applyAxis(3, s.RX, &m.prev.RX, &m.state.Rx, e) || changed
	changed = m.applyAxis(4, s.RY, &m.prev.RY, &m.state.Ry, e) || changed

	if s.LZ != m.prev.LZ || s.RZ != m.prev.RZ {
		// Both triggers share the merged Z axis. When both change within one
		// tick the left trigger wins; consumers depend on this tie-break.
		var v int32
		if s.LZ != m.prev.LZ {
			v = mulDiv(int32(s.LZ), -32768, 255)
		} else {
			v = mulDiv(int32(s.RZ), 32767, 255)
		}
		m.state.Z = ScaleAxisValue(v, e.table.Lookup(AxisID(2)))
		e.emit(AxisID(2), m.state.Z)
		m.prev.LZ, m.prev.RZ = s.LZ, s.RZ
		changed = true
	}

	if s.Buttons != m.prev.Buttons {
		m.prev.Buttons = s.Buttons
		for i := uint8(0); i < 10; i++ {
			var v byte
			if s.Buttons&(1<<i) != 0 {
				v = 0x80
			}
			m.state.Buttons[i] = v
			e.emit(ButtonID(i), int32(v))
		}
		changed = true
	}

	return m.applyPOV(s.Dpad, e) || changed
}
