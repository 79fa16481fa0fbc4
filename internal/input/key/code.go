package key

import (
	"fmt"
	"strings"
)

// Code identifies a key. Values below 0xA5 and in 0xE0-0xE7 are HID keyboard
// page usages and go into the boot keyboard report as-is. The 0xA5-0xDF range
// is reserved by the HID spec and used here for extended keys that are
// reported on other usage pages.
type Code uint8

const (
	CodeNone Code = 0x00

	CodeA Code = 0x04 + iota - 1
	CodeB
	CodeC
	CodeD
	CodeE
	CodeF
	CodeG
	CodeH
	CodeI
	CodeJ
	CodeK
	CodeL
	CodeM
	CodeN
	CodeO
	CodeP
	CodeQ
	CodeR
	CodeS
	CodeT
	CodeU
	CodeV
	CodeW
	CodeX
	CodeY
	CodeZ
	Code1
	Code2
	Code3
	Code4
	Code5
	Code6
	Code7
	Code8
	Code9
	Code0
	CodeEnter
	CodeEscape
	CodeBackspace
	CodeTab
	CodeSpace
	CodeMinus
	CodeEqual
	CodeLeftBracket
	CodeRightBracket
	CodeBackslash
	CodeNonusHash
	CodeSemicolon
	CodeQuote
	CodeGrave
	CodeComma
	CodeDot
	CodeSlash
	CodeCapsLock
	CodeF1
	CodeF2
	CodeF3
	CodeF4
	CodeF5
	CodeF6
	CodeF7
	CodeF8
	CodeF9
	CodeF10
	CodeF11
	CodeF12
	CodePrintScreen
	CodeScrollLock
	CodePause
	CodeInsert
	CodeHome
	CodePageUp
	CodeDelete
	CodeEnd
	CodePageDown
	CodeRight
	CodeLeft
	CodeDown
	CodeUp
	CodeNumLock
	CodeKpSlash
	CodeKpAsterisk
	CodeKpMinus
	CodeKpPlus
	CodeKpEnter
	CodeKp1
	CodeKp2
	CodeKp3
	CodeKp4
	CodeKp5
	CodeKp6
	CodeKp7
	CodeKp8
	CodeKp9
	CodeKp0
	CodeKpDot
)

// System control keys.
const (
	CodeSystemPower Code = 0xA5 + iota
	CodeSystemSleep
	CodeSystemWake
)

// Consumer (media) keys.
const (
	CodeAudioMute Code = 0xA8 + iota
	CodeAudioVolUp
	CodeAudioVolDown
	CodeMediaNextTrack
	CodeMediaPrevTrack
	CodeMediaStop
	CodeMediaPlayPause
	CodeMediaSelect
	CodeMediaEject
	CodeMail
	CodeCalculator
	CodeMyComputer
	CodeWwwSearch
	CodeWwwHome
	CodeWwwBack
	CodeWwwForward
	CodeWwwStop
	CodeWwwRefresh
	CodeWwwFavorites
	CodeMediaFastForward
	CodeMediaRewind
	CodeBrightnessUp
	CodeBrightnessDown
)

// Mouse keys.
const (
	CodeMouseUp Code = 0xCD + iota
	CodeMouseDown
	CodeMouseLeft
	CodeMouseRight
	CodeMouseBtn1
	CodeMouseBtn2
	CodeMouseBtn3
	CodeMouseBtn4
	CodeMouseBtn5
	CodeMouseBtn6
	CodeMouseBtn7
	CodeMouseBtn8
	CodeMouseWheelUp
	CodeMouseWheelDown
	CodeMouseWheelLeft
	CodeMouseWheelRight
)

// Modifier keys. These are keyboard page usages but are reported through the
// modifier byte rather than a keycode slot.
const (
	CodeLCtrl Code = 0xE0 + iota
	CodeLShift
	CodeLAlt
	CodeLGui
	CodeRCtrl
	CodeRShift
	CodeRAlt
	CodeRGui
)

// Class groups codes by the report they end up in.
type Class uint8

const (
	// ClassNone is CodeNone or an unassigned value.
	ClassNone Class = iota
	// ClassKeyboard codes occupy a slot in the boot keyboard report.
	ClassKeyboard
	// ClassModifier codes set a bit in the modifier byte.
	ClassModifier
	// ClassConsumer codes go into the consumer control report.
	ClassConsumer
	// ClassSystem codes go into the system control report.
	ClassSystem
	// ClassMouse codes drive the mouse report.
	ClassMouse
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassKeyboard:
		return "keyboard"
	case ClassModifier:
		return "modifier"
	case ClassConsumer:
		return "consumer"
	case ClassSystem:
		return "system"
	case ClassMouse:
		return "mouse"
	default:
		return "none"
	}
}

// Class returns the report class of the code.
func (c Code) Class() Class {
	switch {
	case c >= CodeA && c <= CodeKpDot:
		return ClassKeyboard
	case c >= CodeLCtrl && c <= CodeRGui:
		return ClassModifier
	case c >= CodeSystemPower && c <= CodeSystemWake:
		return ClassSystem
	case c >= CodeAudioMute && c <= CodeBrightnessDown:
		return ClassConsumer
	case c >= CodeMouseUp && c <= CodeMouseWheelRight:
		return ClassMouse
	default:
		return ClassNone
	}
}

// IsValid returns true if the code is assigned.
func (c Code) IsValid() bool {
	return c.Class() != ClassNone
}

// IsModifier returns true for LCtrl through RGui.
func (c Code) IsModifier() bool {
	return c.Class() == ClassModifier
}

// Modifier returns the modifier bit for a modifier code, or ModNone.
func (c Code) Modifier() Modifier {
	if !c.IsModifier() {
		return ModNone
	}
	return Modifier(1 << (c - CodeLCtrl))
}

// consumerUsages maps consumer codes to HID consumer page (0x0C) usage IDs.
var consumerUsages = map[Code]uint16{
	CodeAudioMute:        0x00E2,
	CodeAudioVolUp:       0x00E9,
	CodeAudioVolDown:     0x00EA,
	CodeMediaNextTrack:   0x00B5,
	CodeMediaPrevTrack:   0x00B6,
	CodeMediaStop:        0x00B7,
	CodeMediaPlayPause:   0x00CD,
	CodeMediaSelect:      0x0183,
	CodeMediaEject:       0x00B8,
	CodeMail:             0x018A,
	CodeCalculator:       0x0192,
	CodeMyComputer:       0x0194,
	CodeWwwSearch:        0x0221,
	CodeWwwHome:          0x0223,
	CodeWwwBack:          0x0224,
	CodeWwwForward:       0x0225,
	CodeWwwStop:          0x0226,
	CodeWwwRefresh:       0x0227,
	CodeWwwFavorites:     0x022A,
	CodeMediaFastForward: 0x00B3,
	CodeMediaRewind:      0x00B4,
	CodeBrightnessUp:     0x006F,
	CodeBrightnessDown:   0x0070,
}

// ConsumerUsage returns the consumer page usage ID for a consumer code.
func (c Code) ConsumerUsage() (uint16, bool) {
	u, ok := consumerUsages[c]
	return u, ok
}

// SystemUsage returns the generic desktop system control usage ID.
func (c Code) SystemUsage() (uint8, bool) {
	switch c {
	case CodeSystemPower:
		return 0x81, true
	case CodeSystemSleep:
		return 0x82, true
	case CodeSystemWake:
		return 0x83, true
	}
	return 0, false
}

// String returns the canonical name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(c))
}

// codeNames holds canonical names. The reverse lookup is built in init.
var codeNames = map[Code]string{
	CodeNone: "No",

	CodeEnter: "Enter", CodeEscape: "Escape", CodeBackspace: "Backspace",
	CodeTab: "Tab", CodeSpace: "Space", CodeMinus: "Minus", CodeEqual: "Equal",
	CodeLeftBracket: "LeftBracket", CodeRightBracket: "RightBracket",
	CodeBackslash: "Backslash", CodeNonusHash: "NonusHash",
	CodeSemicolon: "Semicolon", CodeQuote: "Quote", CodeGrave: "Grave",
	CodeComma: "Comma", CodeDot: "Dot", CodeSlash: "Slash",
	CodeCapsLock: "CapsLock",

	CodePrintScreen: "PrintScreen", CodeScrollLock: "ScrollLock",
	CodePause: "Pause", CodeInsert: "Insert", CodeHome: "Home",
	CodePageUp: "PageUp", CodeDelete: "Delete", CodeEnd: "End",
	CodePageDown: "PageDown", CodeRight: "Right", CodeLeft: "Left",
	CodeDown: "Down", CodeUp: "Up", CodeNumLock: "NumLock",

	CodeKpSlash: "KpSlash", CodeKpAsterisk: "KpAsterisk",
	CodeKpMinus: "KpMinus", CodeKpPlus: "KpPlus", CodeKpEnter: "KpEnter",
	CodeKpDot: "KpDot",

	CodeSystemPower: "SystemPower", CodeSystemSleep: "SystemSleep",
	CodeSystemWake: "SystemWake",

	CodeAudioMute: "AudioMute", CodeAudioVolUp: "AudioVolUp",
	CodeAudioVolDown: "AudioVolDown", CodeMediaNextTrack: "MediaNextTrack",
	CodeMediaPrevTrack: "MediaPrevTrack", CodeMediaStop: "MediaStop",
	CodeMediaPlayPause: "MediaPlayPause", CodeMediaSelect: "MediaSelect",
	CodeMediaEject: "MediaEject", CodeMail: "Mail",
	CodeCalculator: "Calculator", CodeMyComputer: "MyComputer",
	CodeWwwSearch: "WwwSearch", CodeWwwHome: "WwwHome", CodeWwwBack: "WwwBack",
	CodeWwwForward: "WwwForward", CodeWwwStop: "WwwStop",
	CodeWwwRefresh: "WwwRefresh", CodeWwwFavorites: "WwwFavorites",
	CodeMediaFastForward: "MediaFastForward", CodeMediaRewind: "MediaRewind",
	CodeBrightnessUp: "BrightnessUp", CodeBrightnessDown: "BrightnessDown",

	CodeMouseUp: "MouseUp", CodeMouseDown: "MouseDown",
	CodeMouseLeft: "MouseLeft", CodeMouseRight: "MouseRight",
	CodeMouseWheelUp: "MouseWheelUp", CodeMouseWheelDown: "MouseWheelDown",
	CodeMouseWheelLeft: "MouseWheelLeft", CodeMouseWheelRight: "MouseWheelRight",

	CodeLCtrl: "LCtrl", CodeLShift: "LShift", CodeLAlt: "LAlt", CodeLGui: "LGui",
	CodeRCtrl: "RCtrl", CodeRShift: "RShift", CodeRAlt: "RAlt", CodeRGui: "RGui",
}

// codeAliases are extra accepted spellings (lowercase).
var codeAliases = map[string]Code{
	"esc":       CodeEscape,
	"return":    CodeEnter,
	"bspc":      CodeBackspace,
	"del":       CodeDelete,
	"ins":       CodeInsert,
	"pgup":      CodePageUp,
	"pgdn":      CodePageDown,
	"spc":       CodeSpace,
	"lctl":      CodeLCtrl,
	"rctl":      CodeRCtrl,
	"lsft":      CodeLShift,
	"rsft":      CodeRShift,
	"lcmd":      CodeLGui,
	"rcmd":      CodeRGui,
	"lwin":      CodeLGui,
	"rwin":      CodeRGui,
	"mute":      CodeAudioMute,
	"volup":     CodeAudioVolUp,
	"voldown":   CodeAudioVolDown,
	"playpause": CodeMediaPlayPause,
}

// codeByName is the case-insensitive reverse lookup.
var codeByName map[string]Code

func init() {
	for i := 0; i < 26; i++ {
		c := CodeA + Code(i)
		codeNames[c] = string(rune('A' + i))
	}
	for i := 1; i <= 9; i++ {
		codeNames[Code1+Code(i-1)] = fmt.Sprintf("Kc%d", i)
		codeNames[CodeKp1+Code(i-1)] = fmt.Sprintf("Kp%d", i)
	}
	codeNames[Code0] = "Kc0"
	codeNames[CodeKp0] = "Kp0"
	for i := 0; i < 12; i++ {
		codeNames[CodeF1+Code(i)] = fmt.Sprintf("F%d", i+1)
	}
	for i := 0; i < 8; i++ {
		codeNames[CodeMouseBtn1+Code(i)] = fmt.Sprintf("MouseBtn%d", i+1)
	}

	codeByName = make(map[string]Code, len(codeNames)+len(codeAliases)+10)
	for c, name := range codeNames {
		codeByName[strings.ToLower(name)] = c
	}
	for alias, c := range codeAliases {
		codeByName[alias] = c
	}
	// Bare digits are accepted for the number row.
	for i := 0; i <= 9; i++ {
		codeByName[fmt.Sprintf("%d", i)] = codeByName[fmt.Sprintf("kc%d", i)]
	}
}
