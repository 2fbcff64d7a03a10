package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xcafed00d/joystick"

	"padbridge/pkg/protocol"
)

type Export struct {
	ListenPort int           `help:"UDP port to answer bridge requests on" default:"7947" env:"PADBRIDGE_EXPORT_PORT"`
	Joystick   int           `help:"Local joystick device id to export" default:"0" env:"PADBRIDGE_EXPORT_JOYSTICK"`
	Name       string        `help:"Advertised controller name (default: the joystick's own name)" env:"PADBRIDGE_EXPORT_NAME"`
	Mapper     string        `help:"Advertised mapping layout" enum:"standard,xinput" default:"xinput" env:"PADBRIDGE_EXPORT_MAPPER"`
	GamepadID  int32         `help:"Gamepad id to assign" default:"1" env:"PADBRIDGE_EXPORT_ID"`
	Rate       time.Duration `help:"State push interval" default:"16ms" env:"PADBRIDGE_EXPORT_RATE"`
}

// Run is called by Kong when the export command is executed. It plays the
// remote side of the bridge protocol: answers GET_GAMEPAD, pushes live
// samples from a local joystick while notify interest is registered, and
// stops pushing on RELEASE_GAMEPAD.
func (e *Export) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	js, err := joystick.Open(e.Joystick)
	if err != nil {
		return fmt.Errorf("open joystick %d: %w", e.Joystick, err)
	}
	defer js.Close()
	name := e.Name
	if name == "" {
		name = js.Name()
	}
	logger.Info("exporting joystick", "name", name, "axes", js.AxisCount(), "buttons", js.ButtonCount())

	pc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: e.ListenPort})
	if err != nil {
		return fmt.Errorf("bind port %d: %w", e.ListenPort, err)
	}
	defer pc.Close()

	caps := protocol.CapTransportDInput
	if e.Mapper == "standard" {
		caps |= protocol.CapMapperStandard
	} else {
		caps |= protocol.CapMapperXInput
	}

	var stopPush chan struct{}
	stopPusher := func() {
		if stopPush != nil {
			close(stopPush)
			stopPush = nil
		}
	}
	defer stopPusher()

	buf := make([]byte, protocol.FrameSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = pc.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, from, err := pc.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		if n < protocol.FrameSize {
			continue
		}

		switch buf[0] {
		case protocol.CodeGetGamepad:
			info := protocol.GamepadInfo{ID: e.GamepadID, Caps: caps, Name: name}
			frame, _ := info.MarshalBinary()
			if _, err := pc.WriteToUDP(frame, from); err != nil {
				logger.Warn("reply failed", "to", from.String(), "error", err)
				continue
			}
			if buf[2] == 1 {
				logger.Info("bridge subscribed", "addr", from.String())
				stopPusher()
				stopPush = make(chan struct{})
				go e.push(ctx, pc, from, js, stopPush, logger)
			}
		case protocol.CodeReleaseGamepad:
			logger.Info("bridge released controller")
			stopPusher()
		default:
			// Unknown codes are silently ignored.
		}
	}
}

// push samples the joystick at the configured rate and streams state frames
// to the subscribed bridge until stopped.
func (e *Export) push(ctx context.Context, pc *net.UDPConn, to *net.UDPAddr, js joystick.Joystick, stop <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(e.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		jsState, err := js.Read()
		if err != nil {
			logger.Error("joystick read failed", "error", err)
			return
		}
		state := e.sampleFrom(jsState)
		frame, _ := state.MarshalBinary()
		if _, err := pc.WriteToUDP(frame, to); err != nil {
			logger.Warn("push failed", "error", err)
			return
		}
	}
}

// sampleFrom converts a joystick reading to the wire sample. Axis layout
// follows the common Linux gamepad ordering: sticks on 0..3, triggers on
// 4..5, hat on 6..7.
func (e *Export) sampleFrom(js joystick.State) protocol.GamepadState {
	s := protocol.GamepadState{
		ID:      e.GamepadID,
		Buttons: uint16(js.Buttons),
		Dpad:    -1,
	}
	axis := func(i int) int16 {
		if i < len(js.AxisData) {
			return clampAxis(js.AxisData[i])
		}
		return 0
	}
	s.LX, s.LY = axis(0), axis(1)
	s.RX, s.RY = axis(2), axis(3)
	if len(js.AxisData) > 4 {
		s.LZ = triggerByte(js.AxisData[4])
	}
	if len(js.AxisData) > 5 {
		s.RZ = triggerByte(js.AxisData[5])
	}
	if len(js.AxisData) > 7 {
		s.Dpad = hatDirection(js.AxisData[6], js.AxisData[7])
	}
	return s
}

func clampAxis(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func triggerByte(v int) uint8 {
	return uint8((int(clampAxis(v)) + 32768) >> 8)
}

// hatDirection folds the two hat axes into the 8-way dpad encoding, 0..7
// clockwise from up, -1 centered.
func hatDirection(x, y int) int8 {
	up, down := y < 0, y > 0
	left, right := x < 0, x > 0
	switch {
	case up && right:
		return 1
	case down && right:
		return 3
	case down && left:
		return 5
	case up && left:
		return 7
	case up:
		return 0
	case right:
		return 2
	case down:
		return 4
	case left:
		return 6
	}
	return -1
}
