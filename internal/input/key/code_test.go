package key

import "testing"

func TestCodeValues(t *testing.T) {
	tests := []struct {
		code Code
		want uint8
	}{
		{CodeA, 0x04},
		{CodeZ, 0x1D},
		{Code1, 0x1E},
		{Code0, 0x27},
		{CodeEnter, 0x28},
		{CodeCapsLock, 0x39},
		{CodeF1, 0x3A},
		{CodeF12, 0x45},
		{CodeUp, 0x52},
		{CodeKpDot, 0x63},
		{CodeSystemPower, 0xA5},
		{CodeAudioMute, 0xA8},
		{CodeBrightnessDown, 0xBE},
		{CodeMouseUp, 0xCD},
		{CodeMouseWheelRight, 0xDC},
		{CodeLCtrl, 0xE0},
		{CodeRGui, 0xE7},
	}

	for _, tt := range tests {
		if uint8(tt.code) != tt.want {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.code, uint8(tt.code), tt.want)
		}
	}
}

func TestCodeClass(t *testing.T) {
	tests := []struct {
		code Code
		want Class
	}{
		{CodeNone, ClassNone},
		{CodeA, ClassKeyboard},
		{CodeKpDot, ClassKeyboard},
		{CodeLShift, ClassModifier},
		{CodeSystemSleep, ClassSystem},
		{CodeAudioVolUp, ClassConsumer},
		{CodeMouseBtn1, ClassMouse},
		{Code(0x70), ClassNone},
	}

	for _, tt := range tests {
		if got := tt.code.Class(); got != tt.want {
			t.Errorf("%s.Class() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestCodeModifier(t *testing.T) {
	if got := CodeLCtrl.Modifier(); got != ModLCtrl {
		t.Errorf("LCtrl.Modifier() = %v, want %v", got, ModLCtrl)
	}
	if got := CodeRGui.Modifier(); got != ModRGui {
		t.Errorf("RGui.Modifier() = %v, want %v", got, ModRGui)
	}
	if got := CodeA.Modifier(); got != ModNone {
		t.Errorf("A.Modifier() = %v, want none", got)
	}
}

func TestCodeUsages(t *testing.T) {
	if u, ok := CodeAudioVolUp.ConsumerUsage(); !ok || u != 0x00E9 {
		t.Errorf("AudioVolUp.ConsumerUsage() = 0x%04X, %v", u, ok)
	}
	if _, ok := CodeA.ConsumerUsage(); ok {
		t.Error("A should have no consumer usage")
	}
	if u, ok := CodeSystemSleep.SystemUsage(); !ok || u != 0x82 {
		t.Errorf("SystemSleep.SystemUsage() = 0x%02X, %v", u, ok)
	}
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeA, "A"},
		{Code1, "Kc1"},
		{Code0, "Kc0"},
		{CodeF11, "F11"},
		{CodeKp7, "Kp7"},
		{CodeMouseBtn3, "MouseBtn3"},
		{CodeLShift, "LShift"},
		{Code(0x70), "0x70"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
