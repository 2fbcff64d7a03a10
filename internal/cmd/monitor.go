package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"padbridge/internal/log"
	"padbridge/pkg/gamepad"
)

type Monitor struct {
	gamepad.Config `embed:""`

	RetryInterval time.Duration `help:"Delay between discovery attempts while no controller is present" default:"2s" env:"PADBRIDGE_RETRY_INTERVAL"`
}

// Run is called by Kong when the monitor command is executed. It drives the
// full device lifecycle until interrupted: discover (retrying while nothing
// is attached), acquire, then poll, logging every change event.
func (m *Monitor) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev := gamepad.NewDevice(m.Config, &logSink{logger: logger}, logger)
	defer dev.Close()

	info, err := m.discover(ctx, dev, logger)
	if err != nil {
		return err
	}
	if info == nil {
		return nil // interrupted before a controller showed up
	}
	logger.Info("bridged controller ready",
		"name", info.Name, "id", info.ID,
		"vendor", info.VendorID, "product", info.ProductID)

	if err := dev.Acquire(); err != nil {
		return err
	}
	for _, obj := range dev.Objects() {
		logger.Debug("object registered", "name", obj.Name, "usagePage", obj.UsagePage, "usage", obj.Usage)
	}

	pollErr := make(chan error, 1)
	go func() {
		for {
			if err := dev.Poll(); err != nil {
				pollErr <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return dev.Unacquire()
	case err := <-pollErr:
		if errors.Is(err, gamepad.ErrNotAcquired) {
			return nil
		}
		return err
	}
}

func (m *Monitor) discover(ctx context.Context, dev *gamepad.Device, logger *slog.Logger) (*gamepad.DeviceInfo, error) {
	for {
		info, err := dev.Discover()
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, gamepad.ErrNotFound) {
			return nil, err
		}
		logger.Debug("no controller attached, retrying", "in", m.RetryInterval.String())
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(m.RetryInterval):
		}
	}
}

// logSink forwards change events to the logger. The wake signal marks the
// end of each tick that produced events.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) QueueEvent(ev gamepad.Event) {
	s.logger.Info("input event", "object", ev.Index, "value", ev.Value, "seq", ev.Seq)
}

func (s *logSink) Wake() {
	s.logger.Log(context.Background(), log.LevelTrace, "wake")
}
