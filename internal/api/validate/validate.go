package validate

import (
	"strconv"
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Add appends ef when it is non-nil.
func (e *Errs) Add(ef *ErrField) {
	if ef != nil {
		*e = append(*e, *ef)
	}
}

func (e Errs) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

// OptionalInt parses raw into *out when raw is set, and checks it lies in
// [lo, hi].
func OptionalInt(field, raw string, lo, hi int, out *int) *ErrField {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return &ErrField{Field: field, Msg: "must be an integer"}
	}
	if n < lo || n > hi {
		return &ErrField{Field: field, Msg: "must be between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)}
	}
	*out = n
	return nil
}
