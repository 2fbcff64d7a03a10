// Package gamepad implements the virtual game-controller bridge: discovery,
// acquisition and polling of a remote controller over the loopback datagram
// protocol, axis calibration, and per-object change events.
package gamepad

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"padbridge/internal/transport"
	"padbridge/pkg/protocol"
)

// Constant device identity reported for every bridged controller.
const (
	VendorID   = 0x045E
	ProductID  = 0x028E
	DevicePath = "virtual#vid_045e&pid_028e&ig_00"
)

// Phase is the lifecycle state of a Device.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseDiscovered
	PhaseAcquired
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDiscovered:
		return "discovered"
	case PhaseAcquired:
		return "acquired"
	}
	return "unknown"
}

var (
	// ErrNotFound means discovery completed but no usable controller is
	// attached: the remote reported id 0 or is configured for a different
	// consumer. This is the expected steady state without a remote and is
	// distinct from transport errors.
	ErrNotFound = errors.New("gamepad: no controller found")
	// ErrNotDiscovered is returned by Acquire before a successful Discover.
	ErrNotDiscovered = errors.New("gamepad: device not discovered")
	// ErrNotAcquired is returned by Poll and Unacquire outside the acquired
	// phase.
	ErrNotAcquired = errors.New("gamepad: device not acquired")
)

// DeviceInfo is the discovery result: the remote-assigned id, the display
// name from the GET_GAMEPAD response and the fixed product identity.
type DeviceInfo struct {
	ID        int32
	Name      string
	VendorID  uint16
	ProductID uint16
	Path      string
}

// Config carries the device parameters.
type Config struct {
	Transport transport.Config `embed:""`
}

// Device is one virtual controller bridge instance. It owns its socket,
// connection identity and mapper; nothing is shared between instances.
//
// Poll is safe to call from a dedicated polling goroutine while Unacquire
// runs elsewhere: teardown kicks the reader and waits for it to quiesce
// before touching the socket.
type Device struct {
	cfg    Config
	sink   EventSink
	logger *slog.Logger
	now    func() uint32

	phase atomic.Uint32

	mu     sync.Mutex // lifecycle transitions
	readMu sync.Mutex // held for the duration of one poll
	tr     *transport.Conn

	// Connection identity; valid only between a successful Discover and the
	// next Unacquire or failed Discover.
	id   int32
	caps protocol.Capabilities
	name string

	mapper Mapper
	table  *PropertyTable
	seq    uint32
}

// NewDevice creates an idle device. Events and wake signals go to sink.
func NewDevice(cfg Config, sink EventSink, logger *slog.Logger) *Device {
	return &Device{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    func() uint32 { return uint32(time.Now().UnixMilli()) },
	}
}

// Discover recreates the socket and asks the remote for a controller.
// A remote that answers with id 0, or whose capability flags lack the
// DINPUT transport bit, yields ErrNotFound; in both cases the connection
// identity is cleared so no stale id survives a failed discovery.
func (d *Device) Discover() (*DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if Phase(d.phase.Load()) == PhaseAcquired {
		return nil, fmt.Errorf("gamepad: discover while %s", PhaseAcquired)
	}

	// The socket is recreated on every attempt.
	if d.tr != nil {
		_ = d.tr.Close()
		d.tr = nil
	}
	tr, err := transport.Open(d.cfg.Transport, d.logger)
	if err != nil {
		return nil, err
	}
	d.tr = tr

	info, err := d.requestGamepad(false)
	if err != nil {
		d.clearIdentity()
		_ = d.tr.Close()
		d.tr = nil
		d.phase.Store(uint32(PhaseIdle))
		return nil, err
	}

	d.id = info.ID
	d.caps = info.Caps
	d.name = info.Name
	d.phase.Store(uint32(PhaseDiscovered))
	d.logger.Info("controller discovered", "id", info.ID, "name", info.Name, "caps", fmt.Sprintf("%#02x", byte(info.Caps)))

	return &DeviceInfo{
		ID:        info.ID,
		Name:      info.Name,
		VendorID:  VendorID,
		ProductID: ProductID,
		Path:      DevicePath,
	}, nil
}

// requestGamepad runs one GET_GAMEPAD exchange and validates the outcome.
// Callers hold d.mu.
func (d *Device) requestGamepad(notify bool) (*protocol.GamepadInfo, error) {
	frame, err := d.tr.Exchange(protocol.GamepadRequest{Notify: notify})
	if err != nil {
		return nil, err
	}
	var info protocol.GamepadInfo
	if err := info.UnmarshalBinary(frame); err != nil {
		return nil, err
	}
	if info.ID == 0 {
		return nil, ErrNotFound
	}
	if !info.Caps.Has(protocol.CapTransportDInput) {
		// Controller present but the remote is configured for another
		// consumer. Reported as not-found, never as a transport failure.
		return nil, fmt.Errorf("%w: remote not in dinput mode", ErrNotFound)
	}
	return &info, nil
}

// Acquire registers interest in live state pushes and locks in the mapping
// variant for the session. The object list and property table are rebuilt
// for the selected variant.
func (d *Device) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if Phase(d.phase.Load()) != PhaseDiscovered {
		return ErrNotDiscovered
	}

	info, err := d.requestGamepad(true)
	if err != nil {
		return err
	}
	d.id = info.ID
	d.caps = info.Caps

	variant, err := SelectVariant(d.caps)
	if err != nil {
		return err
	}
	d.mapper = newMapper(variant)
	d.table = NewPropertyTable(ObjectsFor(variant))
	d.phase.Store(uint32(PhaseAcquired))
	d.logger.Info("controller acquired", "id", d.id, "variant", variant.String())
	return nil
}

// Poll performs one bounded-wait receive and feeds any state push for the
// active controller through the mapping engine. Timeouts are a normal
// "nothing this tick"; malformed frames, foreign codes and foreign gamepad
// ids are dropped without touching state.
func (d *Device) Poll() error {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if Phase(d.phase.Load()) != PhaseAcquired {
		return ErrNotAcquired
	}

	frame, err := d.tr.Recv()
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		d.logger.Debug("poll receive", "error", err)
		return nil
	}

	var sample protocol.GamepadState
	if err := sample.UnmarshalBinary(frame); err != nil {
		// Not a state push for us. The next poll may succeed.
		return nil
	}
	if sample.ID != d.id {
		return nil
	}

	e := &emitter{table: d.table, sink: d.sink, time: d.now(), seq: &d.seq}
	if d.mapper.Apply(&sample, e) {
		d.sink.Wake()
	}
	return nil
}

// Unacquire leaves the acquired state: it kicks and waits out any in-flight
// poll, sends the release notice, closes the socket and clears the
// connection identity. The device returns to idle.
func (d *Device) Unacquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if Phase(d.phase.Load()) != PhaseAcquired {
		return ErrNotAcquired
	}
	d.phase.Store(uint32(PhaseIdle))

	// Unblock a poll stuck in Recv, then take the read lock to guarantee no
	// poll still holds the socket before teardown.
	d.tr.Kick()
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if err := d.tr.Send(protocol.ReleaseRequest{}); err != nil {
		d.logger.Warn("release notice failed", "error", err)
	}
	_ = d.tr.Close()
	d.tr = nil
	d.clearIdentity()
	d.logger.Info("controller released")
	return nil
}

// Close releases whatever the device currently holds.
func (d *Device) Close() error {
	if Phase(d.phase.Load()) == PhaseAcquired {
		return d.Unacquire()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tr != nil {
		_ = d.tr.Close()
		d.tr = nil
	}
	d.clearIdentity()
	d.phase.Store(uint32(PhaseIdle))
	return nil
}

// clearIdentity resets the connection identity to "none". Callers hold d.mu.
func (d *Device) clearIdentity() {
	d.id = 0
	d.caps = 0
	d.name = ""
}

// Phase returns the current lifecycle state.
func (d *Device) Phase() Phase { return Phase(d.phase.Load()) }

// ID returns the active connection identity, 0 when none.
func (d *Device) ID() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// State returns a snapshot copy of the calibrated device state.
func (d *Device) State() State {
	d.readMu.Lock()
	defer d.readMu.Unlock()
	if d.mapper == nil {
		return State{POV: POVCentered}
	}
	return *d.mapper.State()
}

// Objects returns the ordered object list of the active mapping variant,
// nil before acquisition.
func (d *Device) Objects() []Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.table == nil {
		return nil
	}
	return d.table.Objects()
}

// Properties returns the active calibration table, nil before acquisition.
func (d *Device) Properties() *PropertyTable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table
}
