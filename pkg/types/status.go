package types

import "fmt"

// StatusClass classifies the outcome of one request to the portal.
type StatusClass int

const (
	StatusSuccess StatusClass = iota
	StatusClientError
	StatusServerError
	StatusTimeout
	StatusTransportError
	StatusParseError
)

func (c StatusClass) String() string {
	switch c {
	case StatusSuccess:
		return "success"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	case StatusTimeout:
		return "timeout"
	case StatusTransportError:
		return "transport_error"
	case StatusParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler so the class shows up by name
// in JSON responses and logs.
func (c StatusClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the names produced by
// String.
func (c *StatusClass) UnmarshalText(b []byte) error {
	for class := StatusSuccess; class <= StatusParseError; class++ {
		if class.String() == string(b) {
			*c = class
			return nil
		}
	}
	return fmt.Errorf("unknown status class: %q", b)
}

// AllowsCache reports whether a failed fetch of this class should let metrics
// fall back to their last good value. Every failure except a client error is
// considered transient, including transport errors with no response at all.
// A successful fetch never asks for the cache.
func (c StatusClass) AllowsCache() bool {
	switch c {
	case StatusServerError, StatusTimeout, StatusTransportError, StatusParseError:
		return true
	default:
		return false
	}
}

// Fatal reports whether the class must be surfaced as an update failure so
// that the device is marked unavailable instead of serving stale data.
func (c StatusClass) Fatal() bool {
	return c == StatusClientError
}

// RemoteResult is the classified outcome of a single portal request. Payload
// is only set when Class is StatusSuccess.
type RemoteResult struct {
	Class   StatusClass
	Code    int
	Payload map[string]any
	Err     error
}

// Failed returns a RemoteResult for a failed request.
func Failed(class StatusClass, code int, err error) RemoteResult {
	return RemoteResult{
		Class: class,
		Code:  code,
		Err:   err,
	}
}
