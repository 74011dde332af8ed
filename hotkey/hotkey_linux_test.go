//go:build linux

package hotkey

import "testing"

func TestComboState(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
		want  transition
	}
	tests := []struct {
		name   string
		events []ev
	}{
		{"combo press and release", []ev{
			{keyLCtrl, 1, comboNone},
			{keyLShift, 1, comboNone},
			{keyD, 1, comboDown},
			{keyD, 2, comboNone},
			{keyD, 0, comboUp},
		}},
		{"missing shift", []ev{
			{keyRCtrl, 1, comboNone},
			{keyD, 1, comboNone},
			{keyD, 0, comboNone},
		}},
		{"modifier released first", []ev{
			{keyLCtrl, 1, comboNone},
			{keyRShift, 1, comboNone},
			{keyD, 1, comboDown},
			{keyLCtrl, 0, comboNone},
			{keyD, 0, comboUp},
			{keyD, 1, comboNone},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s comboState
			for i, e := range tt.events {
				if got := s.feed(e.code, e.value); got != e.want {
					t.Fatalf("event %d: got %v, want %v", i, got, e.want)
				}
			}
		})
	}
}
