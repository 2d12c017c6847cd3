package core

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

const (
	DefaultMessage = "Hello from REST API"
	DefaultTimeout = 30 * time.Second
)

// Config is the full configuration for a producer run. Read-only after
// parsing; the run loop never mutates it.
type Config struct {
	Topic      string
	RestAPIURL string
	Username   string
	Password   Secret

	Message string
	Count   int

	// InsecureSkipVerify disables TLS certificate verification. It
	// defaults to true because the demo gateways this tool targets use
	// self-signed certificates. That is a deliberate security
	// trade-off, not a safe default for anything else.
	InsecureSkipVerify bool

	// Timeout applies per request, not to the whole run.
	Timeout time.Duration
}

func NewConfig() Config {
	return Config{
		Message:            DefaultMessage,
		Count:              1,
		InsecureSkipVerify: true,
		Timeout:            DefaultTimeout,
	}
}

// WithRestAPIURL sets the gateway base URL, stripping any trailing
// slashes so that "https://host/" and "https://host" build identical
// request URLs.
func (c Config) WithRestAPIURL(url string) Config {
	c.RestAPIURL = strings.TrimRight(url, "/")
	return c
}

// Validate reports the first missing or malformed field. It runs
// before any network activity.
func (c Config) Validate() error {
	if c.Topic == "" {
		return errors.New("topic must be specified")
	}
	if c.RestAPIURL == "" {
		return errors.New("rest-api-url must be specified")
	}
	if !govalidator.IsRequestURL(c.RestAPIURL) {
		return errors.Errorf("rest-api-url %q is not a valid URL", c.RestAPIURL)
	}
	if c.Username == "" {
		return errors.New("username must be specified")
	}
	if c.Password.IsZero() {
		return errors.New("password must be specified")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}
