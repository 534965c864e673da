package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\d{2,3}-\d{3,4}-\d{4}$`)

// ValidPhone reports whether phone is a dashed phone number. An empty value
// or "-" means no phone on record and is accepted.
func ValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == "-" {
		return true
	}
	return phonePattern.MatchString(phone)
}

// Validator checks extracted records before they reach the accumulator.
type Validator struct {
	Required   []string
	PhoneField string
}

// Validate returns an error wrapping ErrInvalidRecord when r is rejected.
func (v Validator) Validate(r Record) error {
	for _, f := range v.Required {
		if strings.TrimSpace(r[f]) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidRecord, f)
		}
	}
	if v.PhoneField != "" && !ValidPhone(r[v.PhoneField]) {
		return fmt.Errorf("%w: bad %s %q", ErrInvalidRecord, v.PhoneField, r[v.PhoneField])
	}
	return nil
}
