// Package transport delivers queued report messages to the host.
//
// The Dispatcher owns the consumer end of the report channel. Over USB it
// runs one persistent flow next to the producer. Over BLE it runs a
// connection lifecycle: advertise, wait for a central, then race the
// producer, the report flow and a disconnect watcher. Whichever finishes
// first ends the session; the others are cancelled, queued messages are
// discarded and the resolver state is reset before advertising again.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/keyfirm/internal/report"
)

// ReportWriter sends one HID report to the host.
type ReportWriter interface {
	WriteReport(ctx context.Context, r report.Report) error
}

// Session is one BLE connection.
type Session interface {
	ReportWriter

	// WaitDisconnect blocks until the central disconnects or ctx ends.
	WaitDisconnect(ctx context.Context) error
}

// Peripheral is the BLE GATT-HID service capability.
type Peripheral interface {
	// Advertise blocks until a central connects or ctx ends.
	Advertise(ctx context.Context) (Session, error)
}

// Producer is the scan/resolve task feeding the report channel. It runs
// until ctx ends.
type Producer func(ctx context.Context) error

// ErrDisconnected is returned by writes on a session that has ended.
var ErrDisconnected = errors.New("disconnected")

// Mode selects the transport.
type Mode uint8

const (
	ModeUSB Mode = iota
	ModeBLE
)

// String returns "usb" or "ble".
func (m Mode) String() string {
	if m == ModeBLE {
		return "ble"
	}
	return "usb"
}

// ParseMode parses "usb" or "ble".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "usb":
		return ModeUSB, nil
	case "ble":
		return ModeBLE, nil
	}
	return ModeUSB, fmt.Errorf("unknown transport mode %q", s)
}

// ConnectionState is the transport lifecycle state.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Advertising
	Connected
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Advertising:
		return "advertising"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", s)
	}
}
