// Package key provides the low-level vocabulary of the keyboard runtime.
//
// This package defines the fundamental types shared by every stage of the
// scan-to-report pipeline:
//
//   - Code: a HID keyboard usage, or an extended code in the reserved
//     0xA5-0xDF range for consumer, system control and mouse keys
//   - Modifier: the HID modifier byte ({Ctrl, Shift, Alt, Gui} x {Left, Right})
//   - Position: a (row, col) coordinate in the key matrix
//   - Event: a debounced press or release edge at a position
//
// # Code Names
//
// Codes are written by name in layouts and macros. Names are case-insensitive
// and follow the firmware keymap convention:
//
//   - Letters and digits: "A", "Z", "Kc1" (or "1")
//   - Named keys: "Enter", "Escape", "Space", "Backspace", "F5"
//   - Modifiers: "LCtrl", "RShift", "LGui"
//   - Media and system: "AudioVolUp", "MediaPlayPause", "SystemSleep"
//   - Mouse keys: "MouseUp", "MouseBtn1", "MouseWheelDown"
//
// # Modifier Combinations
//
// Modifier combinations are written as names joined by "|", for example
// "LShift|RCtrl".
package key
