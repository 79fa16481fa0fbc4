// Package report builds HID reports from resolved effects.
//
// The Aggregator owns the report state: six boot-protocol key slots, the
// modifier byte with a holder count per bit, and the consumer, system and
// mouse reports. Every observable change produces one sequence-numbered
// Message carrying the report to send.
package report

import (
	"encoding/binary"
	"fmt"

	"github.com/dshills/keyfirm/internal/input/key"
)

// Slots is the number of standard keycodes a boot keyboard report carries.
const Slots = 6

// Kind identifies a HID report.
type Kind uint8

const (
	KindKeyboard Kind = iota
	KindConsumer
	KindSystem
	KindMouse
)

// String returns the report name.
func (k Kind) String() string {
	switch k {
	case KindKeyboard:
		return "keyboard"
	case KindConsumer:
		return "consumer"
	case KindSystem:
		return "system"
	case KindMouse:
		return "mouse"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// KeyboardReport is the 8-byte boot protocol keyboard report.
type KeyboardReport struct {
	Modifier key.Modifier
	Reserved uint8
	Keycodes [Slots]key.Code
}

// Bytes encodes the report: modifier, reserved, six keycodes.
func (r KeyboardReport) Bytes() []byte {
	b := make([]byte, 2+Slots)
	b[0] = byte(r.Modifier)
	b[1] = r.Reserved
	for i, c := range r.Keycodes {
		b[2+i] = byte(c)
	}
	return b
}

// Pressed returns the non-empty keycodes in slot order.
func (r KeyboardReport) Pressed() []key.Code {
	var out []key.Code
	for _, c := range r.Keycodes {
		if c != key.CodeNone {
			out = append(out, c)
		}
	}
	return out
}

// ConsumerReport carries one consumer control usage id.
type ConsumerReport struct {
	Usage uint16
}

// Bytes encodes the usage id little-endian.
func (r ConsumerReport) Bytes() []byte {
	return binary.LittleEndian.AppendUint16(nil, r.Usage)
}

// SystemReport carries one system control usage id.
type SystemReport struct {
	Usage uint8
}

// Bytes encodes the usage id.
func (r SystemReport) Bytes() []byte {
	return []byte{r.Usage}
}

// MouseReport is a relative mouse report.
type MouseReport struct {
	Buttons uint8
	X       int8
	Y       int8
	Wheel   int8
	Pan     int8
}

// Bytes encodes buttons, x, y, wheel, pan.
func (r MouseReport) Bytes() []byte {
	return []byte{r.Buttons, byte(r.X), byte(r.Y), byte(r.Wheel), byte(r.Pan)}
}

// Report is one HID report of any kind. Only the field matching Kind is
// meaningful.
type Report struct {
	Kind     Kind
	Keyboard KeyboardReport
	Consumer ConsumerReport
	System   SystemReport
	Mouse    MouseReport
}

// Bytes encodes the report selected by Kind.
func (r Report) Bytes() []byte {
	switch r.Kind {
	case KindConsumer:
		return r.Consumer.Bytes()
	case KindSystem:
		return r.System.Bytes()
	case KindMouse:
		return r.Mouse.Bytes()
	default:
		return r.Keyboard.Bytes()
	}
}

// String returns the kind and hex bytes, e.g. "keyboard 02 00 04 ...".
func (r Report) String() string {
	return fmt.Sprintf("%s % x", r.Kind, r.Bytes())
}
