package cfb

import "fmt"

type Validation int

const (
	ValidationPermissive Validation = iota
	ValidationStrict     Validation = iota
)

func (v Validation) IsStrict() bool {
	return v == ValidationStrict
}

func (v Validation) String() string {
	if v.IsStrict() {
		return "strict"
	}
	return "permissive"
}

// ParseValidation converts a config value into a Validation.
func ParseValidation(s string) (Validation, error) {
	switch s {
	case "", "permissive":
		return ValidationPermissive, nil
	case "strict":
		return ValidationStrict, nil
	default:
		return ValidationPermissive, fmt.Errorf("unknown validation mode %q", s)
	}
}
