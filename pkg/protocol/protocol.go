// Package protocol implements the loopback datagram protocol spoken between
// the gamepad bridge and the remote input server.
//
// Every frame is exactly 64 bytes, little-endian. The first byte carries the
// request code; unknown codes are ignored by both sides.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameSize is the fixed size of every datagram, request or response.
const FrameSize = 64

// Request codes. There is no version field beyond these.
const (
	CodeGetGamepad      = 8
	CodeGetGamepadState = 9
	CodeReleaseGamepad  = 10
)

// Capabilities is the flag byte the remote side declares in the GET_GAMEPAD
// response. Mapper bits select the button/axis layout, transport bits declare
// which consumer the remote is configured for.
type Capabilities byte

const (
	CapMapperStandard  Capabilities = 0x01
	CapMapperXInput    Capabilities = 0x02
	CapTransportXInput Capabilities = 0x04
	CapTransportDInput Capabilities = 0x08
)

// Has reports whether all bits in mask are set.
func (c Capabilities) Has(mask Capabilities) bool { return c&mask == mask }

// MaxNameLen is the longest controller name a GET_GAMEPAD response can carry:
// the frame minus the 10-byte header.
const MaxNameLen = FrameSize - 10

// ErrBadFrame is wrapped by decode errors caused by a malformed but
// full-length frame (wrong code byte, out-of-range field).
var ErrBadFrame = fmt.Errorf("protocol: malformed frame")

// GamepadRequest asks the remote for the connected controller. Notify
// registers interest in live state pushes.
//
// Layout: [0]=8, [1]=0, [2]=notify (0/1), rest zero.
type GamepadRequest struct {
	Notify bool
}

// MarshalBinary encodes the request into a full 64-byte frame.
func (r GamepadRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	b[0] = CodeGetGamepad
	b[1] = 0
	if r.Notify {
		b[2] = 1
	}
	return b, nil
}

// GamepadInfo is the GET_GAMEPAD response. ID 0 means no controller is
// attached.
//
// Layout: [0]=8, int32@1=id, byte@5=caps, int32@6=name_len, bytes@10..=name.
type GamepadInfo struct {
	ID   int32
	Caps Capabilities
	Name string
}

// MarshalBinary encodes the response into a full 64-byte frame. Names longer
// than MaxNameLen are truncated.
func (g GamepadInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	b[0] = CodeGetGamepad
	binary.LittleEndian.PutUint32(b[1:5], uint32(g.ID))
	b[5] = byte(g.Caps)
	name := g.Name
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	binary.LittleEndian.PutUint32(b[6:10], uint32(len(name)))
	copy(b[10:], name)
	return b, nil
}

// UnmarshalBinary decodes a GET_GAMEPAD response. Every field is validated
// before any of it is trusted.
func (g *GamepadInfo) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return io.ErrUnexpectedEOF
	}
	if data[0] != CodeGetGamepad {
		return fmt.Errorf("%w: code %d, want %d", ErrBadFrame, data[0], CodeGetGamepad)
	}
	nameLen := int32(binary.LittleEndian.Uint32(data[6:10]))
	if nameLen < 0 || nameLen > MaxNameLen {
		return fmt.Errorf("%w: name length %d", ErrBadFrame, nameLen)
	}
	g.ID = int32(binary.LittleEndian.Uint32(data[1:5]))
	g.Caps = Capabilities(data[5])
	g.Name = string(data[10 : 10+nameLen])
	return nil
}

// GamepadState is the unsolicited live sample pushed by the remote while a
// controller is acquired with notify set.
//
// Layout: [0]=9, [1]=1, int32@2=id, int16@6=buttons, int8@8=dpad,
// int16@9,11,13,15=lx,ly,rx,ry, byte@17,18=lz,rz.
type GamepadState struct {
	ID      int32
	Buttons uint16
	Dpad    int8 // -1 centered, otherwise 0..7 clockwise from up
	LX, LY  int16
	RX, RY  int16
	LZ, RZ  uint8
}

// MarshalBinary encodes the state push into a full 64-byte frame.
func (s GamepadState) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	b[0] = CodeGetGamepadState
	b[1] = 1
	binary.LittleEndian.PutUint32(b[2:6], uint32(s.ID))
	binary.LittleEndian.PutUint16(b[6:8], s.Buttons)
	b[8] = byte(s.Dpad)
	binary.LittleEndian.PutUint16(b[9:11], uint16(s.LX))
	binary.LittleEndian.PutUint16(b[11:13], uint16(s.LY))
	binary.LittleEndian.PutUint16(b[13:15], uint16(s.RX))
	binary.LittleEndian.PutUint16(b[15:17], uint16(s.RY))
	b[17] = s.LZ
	b[18] = s.RZ
	return b, nil
}

// UnmarshalBinary decodes a state push. The embedded gamepad id is not
// checked here; matching it against the active connection is the device's
// responsibility.
func (s *GamepadState) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return io.ErrUnexpectedEOF
	}
	if data[0] != CodeGetGamepadState {
		return fmt.Errorf("%w: code %d, want %d", ErrBadFrame, data[0], CodeGetGamepadState)
	}
	if data[1] != 1 {
		return fmt.Errorf("%w: state marker %d", ErrBadFrame, data[1])
	}
	s.ID = int32(binary.LittleEndian.Uint32(data[2:6]))
	s.Buttons = binary.LittleEndian.Uint16(data[6:8])
	s.Dpad = int8(data[8])
	s.LX = int16(binary.LittleEndian.Uint16(data[9:11]))
	s.LY = int16(binary.LittleEndian.Uint16(data[11:13]))
	s.RX = int16(binary.LittleEndian.Uint16(data[13:15]))
	s.RY = int16(binary.LittleEndian.Uint16(data[15:17]))
	s.LZ = data[17]
	s.RZ = data[18]
	return nil
}

// ReleaseRequest tells the remote the bridge is letting go of the controller.
//
// Layout: [0]=10, rest zero.
type ReleaseRequest struct{}

// MarshalBinary encodes the release notice into a full 64-byte frame.
func (ReleaseRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	b[0] = CodeReleaseGamepad
	return b, nil
}
