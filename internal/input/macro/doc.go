// Package macro holds the keyboard's macro table.
//
// A macro is a short, fixed sequence of key steps bound to a small numeric
// id. A layout position bound to MACRO(id) plays every step as a
// press/release pair when it is pressed.
//
// # Defining Macros
//
// Macros come from the configuration file in one of two forms:
//
//   - A list of step strings in layout notation, e.g. ["H", "I", "Enter"]
//     or ["WM(A, LCtrl)"]
//   - A Lua script, compiled once at build time in a sandboxed state
//
// Lua scripts may call tap(step) and text(s) to append steps, and may also
// return a table of step strings:
//
//	text("Hello, World!")
//	tap("Enter")
//
// Scripts run without the io, os, debug or package libraries, and are
// cancelled if they exceed the compile timeout.
//
// # Thread Safety
//
// Table is safe for concurrent use: the scan task reads it while remaps and
// configuration reloads may redefine entries.
package macro
