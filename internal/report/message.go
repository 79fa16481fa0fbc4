package report

import (
	"fmt"
	"time"

	"github.com/dshills/keyfirm/internal/input/key"
)

// Change describes what a message changed.
type Change uint8

const (
	ChangeKeyAdd Change = iota
	ChangeKeyRemove
	ChangeModifiers
	ChangeLayers
	ChangeConsumer
	ChangeSystem
	ChangeMouse
)

// String returns the change name.
func (c Change) String() string {
	switch c {
	case ChangeKeyAdd:
		return "key-add"
	case ChangeKeyRemove:
		return "key-remove"
	case ChangeModifiers:
		return "modifiers"
	case ChangeLayers:
		return "layers"
	case ChangeConsumer:
		return "consumer"
	case ChangeSystem:
		return "system"
	case ChangeMouse:
		return "mouse"
	default:
		return fmt.Sprintf("Change(%d)", c)
	}
}

// Message is one observable change, queued between the resolver and the
// transport. Messages are values and are never modified after creation.
type Message struct {
	// Seq increases by one per message from the same Aggregator.
	Seq uint64

	Change Change

	// Code is the key added or removed, if any.
	Code key.Code

	// Layers is the active layer set for ChangeLayers.
	Layers []uint8

	// Report is the full report after the change. Layer changes carry no
	// report.
	Report Report

	At time.Time
}

// HasReport returns true if the message must be written to the host.
func (m Message) HasReport() bool {
	return m.Change != ChangeLayers
}

// String returns e.g. "#12 key-add A keyboard 00 00 04 00 00 00 00 00".
func (m Message) String() string {
	switch m.Change {
	case ChangeLayers:
		return fmt.Sprintf("#%d layers %v", m.Seq, m.Layers)
	case ChangeKeyAdd, ChangeKeyRemove:
		return fmt.Sprintf("#%d %s %s %s", m.Seq, m.Change, m.Code, m.Report)
	default:
		return fmt.Sprintf("#%d %s %s", m.Seq, m.Change, m.Report)
	}
}
