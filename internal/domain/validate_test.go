package domain

import (
	"errors"
	"testing"
)

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"02-1234-5678", true},
		{"031-123-4567", true},
		{"010-1234-5678", true},
		{"", true},
		{"-", true},
		{" - ", true},
		{"02-12-5678", false},
		{"0212345678", false},
		{"1-1234-5678", false},
		{"02-1234-567", false},
		{"tel: 02-1234-5678", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			if got := ValidPhone(tt.phone); got != tt.want {
				t.Errorf("ValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := Validator{Required: []string{"name", "address"}, PhoneField: "phone"}

	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"complete", Record{"name": "A", "address": "B", "phone": "02-1234-5678"}, false},
		{"unknown phone", Record{"name": "A", "address": "B", "phone": "-"}, false},
		{"no phone field", Record{"name": "A", "address": "B"}, false},
		{"missing name", Record{"address": "B"}, true},
		{"blank address", Record{"name": "A", "address": "  "}, true},
		{"bad phone", Record{"name": "A", "address": "B", "phone": "02-12-5678"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.record)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Errorf("Validate() error = %v, want ErrInvalidRecord", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestFatal(t *testing.T) {
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) != nil")
	}

	err := Fatal(ErrMissingInput)
	if !IsFatal(err) {
		t.Error("IsFatal() = false for wrapped error")
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Error("Fatal() lost the wrapped error")
	}
	if Fatal(err) != err {
		t.Error("Fatal() double wrapped")
	}
	if IsFatal(errors.New("timeout")) {
		t.Error("IsFatal() = true for plain error")
	}
}
