// Package layer tracks which layout layers are active.
package layer

import "fmt"

// Handle identifies one pushed layer instance. The same layer may be active
// several times at once (for example held by two momentary keys), and each
// release must remove exactly the instance its press created.
type Handle uint32

// ChangeCallback is called with the active layers (bottom to top) after
// every change.
type ChangeCallback func(active []uint8)

type entry struct {
	layer   uint8
	handle  Handle
	toggled bool
}

// Stack is the ordered set of active layers. The base layer 0 is implicit at
// the bottom and can never be removed.
//
// A Stack is owned by the scan task and is not safe for concurrent use.
type Stack struct {
	layers  uint8
	entries []entry
	next    Handle

	// callbacks are notified on every change.
	callbacks []ChangeCallback
}

// NewStack creates a stack for a layout with the given number of layers.
func NewStack(layers uint8) *Stack {
	return &Stack{
		layers:  layers,
		entries: make([]entry, 0, 4),
	}
}

// Push activates layer n on top of the stack and returns its handle.
func (s *Stack) Push(n uint8) (Handle, error) {
	if n >= s.layers {
		return 0, fmt.Errorf("push layer %d: stack has %d layers", n, s.layers)
	}
	s.next++
	h := s.next
	s.entries = append(s.entries, entry{layer: n, handle: h})
	s.notify()
	return h, nil
}

// Pop removes the instance created by the Push that returned h.
// Returns false if h is not on the stack.
func (s *Stack) Pop(h Handle) bool {
	for i, e := range s.entries {
		if e.handle == h && !e.toggled {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.notify()
			return true
		}
	}
	return false
}

// Toggle flips the toggled membership of layer n and reports whether n is
// now toggled on. Momentary instances of n are not affected.
func (s *Stack) Toggle(n uint8) (bool, error) {
	if n >= s.layers {
		return false, fmt.Errorf("toggle layer %d: stack has %d layers", n, s.layers)
	}
	for i, e := range s.entries {
		if e.toggled && e.layer == n {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.notify()
			return false, nil
		}
	}
	s.next++
	s.entries = append(s.entries, entry{layer: n, handle: s.next, toggled: true})
	s.notify()
	return true, nil
}

// IsToggled returns true if layer n is toggled on.
func (s *Stack) IsToggled(n uint8) bool {
	for _, e := range s.entries {
		if e.toggled && e.layer == n {
			return true
		}
	}
	return false
}

// Contains returns true if layer n is active by any means.
func (s *Stack) Contains(n uint8) bool {
	if n == 0 {
		return true
	}
	for _, e := range s.entries {
		if e.layer == n {
			return true
		}
	}
	return false
}

// Active returns the active layers from bottom (always 0) to top.
func (s *Stack) Active() []uint8 {
	out := make([]uint8, 1, len(s.entries)+1)
	for _, e := range s.entries {
		out = append(out, e.layer)
	}
	return out
}

// Top returns the topmost active layer.
func (s *Stack) Top() uint8 {
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].layer
}

// Depth returns the number of layer instances above the base.
func (s *Stack) Depth() int {
	return len(s.entries)
}

// ReleaseMomentary removes every pushed instance, keeping toggled layers.
// It reports whether anything was removed.
func (s *Stack) ReleaseMomentary() bool {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.toggled {
			kept = append(kept, e)
		}
	}
	changed := len(kept) != len(s.entries)
	s.entries = kept
	if changed {
		s.notify()
	}
	return changed
}

// Reset returns the stack to base only.
func (s *Stack) Reset() {
	if len(s.entries) == 0 {
		return
	}
	s.entries = s.entries[:0]
	s.notify()
}

// OnChange registers a callback for stack changes.
// Returns a function to unregister the callback.
func (s *Stack) OnChange(callback ChangeCallback) func() {
	s.callbacks = append(s.callbacks, callback)
	index := len(s.callbacks) - 1

	return func() {
		// Remove callback by setting to nil (preserves indices)
		if index < len(s.callbacks) {
			s.callbacks[index] = nil
		}
	}
}

func (s *Stack) notify() {
	if len(s.callbacks) == 0 {
		return
	}
	active := s.Active()
	for _, cb := range s.callbacks {
		if cb != nil {
			cb(active)
		}
	}
}
