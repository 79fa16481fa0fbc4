package app

import (
	"context"
	"fmt"

	"github.com/dshills/keyfirm/internal/transport"
)

// Host is the link the keyboard reports to.
type Host struct {
	Mode transport.Mode

	// Writer is the USB endpoint, used when Mode is USB.
	Writer transport.ReportWriter

	// Peripheral is the BLE radio, used when Mode is BLE.
	Peripheral transport.Peripheral
}

// Run scans and reports to host until ctx ends. With BLE, scanning only
// runs while a central is connected.
func (k *Keyboard) Run(ctx context.Context, host Host) error {
	if !k.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer k.running.Store(false)

	switch host.Mode {
	case transport.ModeUSB:
		if host.Writer == nil {
			return fmt.Errorf("%w %s", ErrNoHost, host.Mode)
		}
		return k.dispatcher.RunUSB(ctx, host.Writer, k.scan)
	case transport.ModeBLE:
		if host.Peripheral == nil {
			return fmt.Errorf("%w %s", ErrNoHost, host.Mode)
		}
		return k.dispatcher.RunBLE(ctx, host.Peripheral, k.scan)
	}
	return fmt.Errorf("%w %s", ErrNoHost, host.Mode)
}

// Running reports whether Run is active.
func (k *Keyboard) Running() bool {
	return k.running.Load()
}
