package core

import "log/slog"

const redacted = "[REDACTED]"

// Secret holds a credential that must never appear in program output.
// It redacts itself through fmt, slog and JSON marshalling; callers
// that genuinely need the value use Reveal.
type Secret struct {
	value string
}

func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the underlying value. Keep call sites to a minimum.
func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
