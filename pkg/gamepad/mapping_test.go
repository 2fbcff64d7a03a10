package gamepad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padbridge/pkg/protocol"
)

type recordSink struct {
	events []Event
	wakes  int
}

func (s *recordSink) QueueEvent(ev Event) { s.events = append(s.events, ev) }
func (s *recordSink) Wake()               { s.wakes++ }

// tick runs one Apply with a fresh emitter the way Device.Poll does.
func tick(m Mapper, table *PropertyTable, sink *recordSink, seq *uint32, s protocol.GamepadState) bool {
	e := &emitter{table: table, sink: sink, time: 1000, seq: seq}
	return m.Apply(&s, e)
}

func newTestMapper(v Variant) (Mapper, *PropertyTable, *recordSink, *uint32) {
	return newMapper(v), NewPropertyTable(ObjectsFor(v)), &recordSink{}, new(uint32)
}

func TestSelectVariant(t *testing.T) {
	cases := []struct {
		name    string
		caps    protocol.Capabilities
		want    Variant
		wantErr bool
	}{
		{name: "standard", caps: protocol.CapMapperStandard, want: VariantStandard},
		{name: "xinput", caps: protocol.CapMapperXInput, want: VariantXInput},
		{name: "standard wins over xinput", caps: protocol.CapMapperStandard | protocol.CapMapperXInput, want: VariantStandard},
		{name: "neither", caps: protocol.CapTransportDInput, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := SelectVariant(tc.caps)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrNoMapper)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestSingleAxisChangeEmitsOneEvent(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantStandard)

	changed := tick(m, table, sink, seq, protocol.GamepadState{LX: 1000, Dpad: 0})
	// Zero-initialized previous sample: only lx differs.
	assert.True(t, changed)
	require.Len(t, sink.events, 1)

	ev := sink.events[0]
	assert.Equal(t, table.IndexOf(AxisID(0)), ev.Index)
	assert.Equal(t, ScaleAxisValue(1000, table.Lookup(AxisID(0))), ev.Value)
	assert.Equal(t, uint32(1), ev.Seq)
	assert.Equal(t, ev.Value, m.State().X)
}

func TestIdenticalSampleEmitsNothing(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantStandard)
	sample := protocol.GamepadState{LX: 1000, LY: -2000, Buttons: 0x5, Dpad: 3}

	assert.True(t, tick(m, table, sink, seq, sample))
	n := len(sink.events)

	assert.False(t, tick(m, table, sink, seq, sample))
	assert.Len(t, sink.events, n)
	assert.Equal(t, uint32(n), *seq)
}

func TestStandardButtonPermutation(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantStandard)

	// Press A (bit 0): the standard layout routes it to slot 1, and any
	// bitmask change re-emits all 12 slots.
	changed := tick(m, table, sink, seq, protocol.GamepadState{Buttons: 1 << BitButtonA, Dpad: 0})
	assert.True(t, changed)
	require.Len(t, sink.events, 12)

	st := m.State()
	assert.Equal(t, byte(0x80), st.Buttons[1])
	for slot, v := range st.Buttons {
		if slot != 1 {
			assert.Equal(t, byte(0), v, "slot %d", slot)
		}
	}

	// Each emitted event resolves to a button object of the active list.
	seen := map[int]int32{}
	for _, ev := range sink.events {
		seen[ev.Index] = ev.Value
	}
	assert.Equal(t, int32(0x80), seen[table.IndexOf(ButtonID(1))])
	assert.Equal(t, int32(0), seen[table.IndexOf(ButtonID(0))])
}

func TestStandardButtonSlotTable(t *testing.T) {
	want := map[int]uint8{
		BitButtonA: 1, BitButtonB: 2, BitButtonX: 0, BitButtonY: 3,
		BitButtonL1: 4, BitButtonR1: 5, BitButtonL2: 6, BitButtonR2: 7,
		BitButtonSelect: 8, BitButtonStart: 9, BitButtonL3: 10, BitButtonR3: 11,
	}
	for bit, slot := range want {
		assert.Equal(t, slot, standardButtonSlots[bit], "bit %d", bit)
	}
}

func TestXInputButtonsIdentity(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantXInput)

	changed := tick(m, table, sink, seq, protocol.GamepadState{Buttons: 1<<3 | 1<<9, Dpad: 0})
	assert.True(t, changed)
	require.Len(t, sink.events, 10)

	st := m.State()
	assert.Equal(t, byte(0x80), st.Buttons[3])
	assert.Equal(t, byte(0x80), st.Buttons[9])
	assert.Equal(t, byte(0), st.Buttons[0])

	seen := map[int]int32{}
	for _, ev := range sink.events {
		seen[ev.Index] = ev.Value
	}
	assert.Equal(t, int32(0x80), seen[table.IndexOf(ButtonID(3))])
	assert.Equal(t, int32(0), seen[table.IndexOf(ButtonID(4))])
}

func TestXInputStickAxes(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantXInput)

	changed := tick(m, table, sink, seq, protocol.GamepadState{RX: 5000, RY: -5000, Dpad: 0})
	assert.True(t, changed)
	require.Len(t, sink.events, 2)

	st := m.State()
	assert.Equal(t, ScaleAxisValue(5000, table.Lookup(AxisID(3))), st.Rx)
	assert.Equal(t, ScaleAxisValue(-5000, table.Lookup(AxisID(4))), st.Ry)
	// The merged trigger axis is untouched.
	assert.Equal(t, int32(0), st.Z)
}

func TestMergedTriggerLeftPriority(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantXInput)

	// Both triggers move in the same tick: the left one wins.
	changed := tick(m, table, sink, seq, protocol.GamepadState{LZ: 10, RZ: 10, Dpad: 0})
	assert.True(t, changed)
	require.Len(t, sink.events, 1)

	props := table.Lookup(AxisID(2))
	wantZ := ScaleAxisValue(mulDiv(10, -32768, 255), props)
	assert.Equal(t, wantZ, sink.events[0].Value)
	assert.Equal(t, wantZ, m.State().Z)

	// Next tick only the right trigger moves.
	sink.events = nil
	changed = tick(m, table, sink, seq, protocol.GamepadState{LZ: 10, RZ: 200, Dpad: 0})
	assert.True(t, changed)
	require.Len(t, sink.events, 1)
	assert.Equal(t, ScaleAxisValue(mulDiv(200, 32767, 255), props), m.State().Z)
}

func TestPOVMapping(t *testing.T) {
	for _, variant := range []Variant{VariantStandard, VariantXInput} {
		t.Run(variant.String(), func(t *testing.T) {
			m, table, sink, seq := newTestMapper(variant)

			changed := tick(m, table, sink, seq, protocol.GamepadState{Dpad: 2})
			assert.True(t, changed)
			require.Len(t, sink.events, 1)
			assert.Equal(t, table.IndexOf(POVID(0)), sink.events[0].Index)
			assert.Equal(t, int32(9000), m.State().POV)

			sink.events = nil
			changed = tick(m, table, sink, seq, protocol.GamepadState{Dpad: -1})
			assert.True(t, changed)
			require.Len(t, sink.events, 1)
			assert.Equal(t, POVCentered, m.State().POV)
		})
	}
}

func TestSequenceAdvancesPerEvent(t *testing.T) {
	m, table, sink, seq := newTestMapper(VariantStandard)

	// lx + ly + 12 buttons + dpad = 15 events in one tick.
	tick(m, table, sink, seq, protocol.GamepadState{LX: 100, LY: 200, Buttons: 1, Dpad: 4})
	require.Len(t, sink.events, 15)
	assert.Equal(t, uint32(15), *seq)
	for i, ev := range sink.events {
		assert.Equal(t, uint32(i+1), ev.Seq)
	}

	// The counter keeps rising across ticks.
	tick(m, table, sink, seq, protocol.GamepadState{LX: 101, LY: 200, Buttons: 1, Dpad: 4})
	assert.Equal(t, uint32(16), *seq)
	assert.Equal(t, uint32(16), sink.events[len(sink.events)-1].Seq)
}

func TestObjectsFor(t *testing.T) {
	std := ObjectsFor(VariantStandard)
	require.Len(t, std, 17)
	assert.Equal(t, "X Axis", std[0].Name)
	assert.Equal(t, "Rz Axis", std[3].Name)
	assert.Equal(t, AxisID(3), std[3].ID)
	assert.Equal(t, ButtonID(0), std[4].ID)
	assert.Equal(t, POVID(0), std[16].ID)

	xi := ObjectsFor(VariantXInput)
	require.Len(t, xi, 16)
	assert.Equal(t, "Rx Axis", xi[3].Name)
	assert.Equal(t, "Ry Axis", xi[4].Name)
	assert.Equal(t, ButtonID(9), xi[14].ID)
	assert.Equal(t, POVID(0), xi[15].ID)
}

func TestPropertyTableDefaults(t *testing.T) {
	table := NewPropertyTable(ObjectsFor(VariantXInput))

	for i := uint8(0); i < 5; i++ {
		props := table.Lookup(AxisID(i))
		require.NotNil(t, props)
		assert.Equal(t, int32(-32768), props.LogicalMin)
		assert.Equal(t, int32(32767), props.LogicalMax)
		assert.Equal(t, int32(0), props.RangeMin)
		assert.Equal(t, int32(65535), props.RangeMax)
		assert.Equal(t, int32(10000), props.Saturation)
		assert.Equal(t, int32(1), props.Granularity)
	}

	assert.Equal(t, -1, table.IndexOf(AxisID(5)))
	assert.Nil(t, table.Lookup(ButtonID(10)))
	assert.Equal(t, 15, table.IndexOf(POVID(0)))
}
