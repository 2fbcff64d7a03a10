package gamepad

import "fmt"

// ObjectKind classifies a device object.
type ObjectKind uint8

const (
	KindAxis ObjectKind = iota
	KindButton
	KindPOV
)

// ObjectID names one object of the active layout: kind plus instance number.
type ObjectID struct {
	Kind     ObjectKind
	Instance uint8
}

// AxisID, ButtonID and POVID are shorthands for building ObjectIDs.
func AxisID(n uint8) ObjectID   { return ObjectID{Kind: KindAxis, Instance: n} }
func ButtonID(n uint8) ObjectID { return ObjectID{Kind: KindButton, Instance: n} }
func POVID(n uint8) ObjectID    { return ObjectID{Kind: KindPOV, Instance: n} }

// HID usage pages and usages reported for the enumerated objects.
const (
	UsagePageGenericDesktop = 0x01
	UsagePageButton         = 0x09

	UsageX         = 0x30
	UsageY         = 0x31
	UsageZ         = 0x32
	UsageRx        = 0x33
	UsageRy        = 0x34
	UsageRz        = 0x35
	UsageHatSwitch = 0x39
)

// Offsets of the objects inside the packed joystick state block.
const (
	OffsetX   = 0
	OffsetY   = 4
	OffsetZ   = 8
	OffsetRx  = 12
	OffsetRy  = 16
	OffsetRz  = 20
	OffsetPOV = 32
	// Buttons start after the four POV slots.
	OffsetButton0 = 48
)

// Object describes one enumerable axis, button or hat of the active layout.
type Object struct {
	ID        ObjectID
	Name      string
	Offset    uint16
	UsagePage uint16
	Usage     uint16
}

func axisObject(instance uint8, name string, offset, usage uint16) Object {
	return Object{ID: AxisID(instance), Name: name, Offset: offset, UsagePage: UsagePageGenericDesktop, Usage: usage}
}

func buttonObjects(count int) []Object {
	out := make([]Object, count)
	for i := range out {
		out[i] = Object{
			ID:        ButtonID(uint8(i)),
			Name:      fmt.Sprintf("Button %d", i),
			Offset:    OffsetButton0 + uint16(i),
			UsagePage: UsagePageButton,
			Usage:     uint16(i + 1),
		}
	}
	return out
}

func povObject() Object {
	return Object{ID: POVID(0), Name: "POV", Offset: OffsetPOV, UsagePage: UsagePageGenericDesktop, Usage: UsageHatSwitch}
}

// ObjectsFor returns the fixed ordered object list the outer framework
// iterates to register device objects. The list depends on the active
// mapping variant and must be recomputed whenever the variant changes.
func ObjectsFor(v Variant) []Object {
	var out []Object
	switch v {
	case VariantStandard:
		out = append(out,
			axisObject(0, "X Axis", OffsetX, UsageX),
			axisObject(1, "Y Axis", OffsetY, UsageY),
			axisObject(2, "Z Axis", OffsetZ, UsageZ),
			axisObject(3, "Rz Axis", OffsetRz, UsageRz),
		)
		out = append(out, buttonObjects(12)...)
	case VariantXInput:
		out = append(out,
			axisObject(0, "X Axis", OffsetX, UsageX),
			axisObject(1, "Y Axis", OffsetY, UsageY),
			axisObject(2, "Z Axis", OffsetZ, UsageZ),
			axisObject(3, "Rx Axis", OffsetRx, UsageRx),
			axisObject(4, "Ry Axis", OffsetRy, UsageRy),
		)
		out = append(out, buttonObjects(10)...)
	}
	return append(out, povObject())
}
