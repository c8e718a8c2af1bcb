// Package message defines the wire-independent data model shared by every
// protocol adapter, serializer, and filter in srpcgo: call status, the
// module-data baggage map, and the per-protocol Meta/Message envelope.
package message

// Status is the RPC-level outcome of a call, carried in reply meta and
// surfaced to callers as the primary error signal. It is distinct from a Go
// error: system/protocol failures are translated into a Status by the layer
// that detected them (see srpcgo's error-handling design).
type Status int32

const (
	StatusOK Status = iota
	StatusUndefinedError
	StatusRequestEncodeFailed
	StatusRequestCompressFailed
	StatusRequestSendFailed
	StatusResponseTimeout
	StatusResponseParseFailed
	StatusResponseDecompressFailed
	StatusResponseDecodeFailed
	StatusMethodNotFound
	StatusServiceNotFound
	StatusMetaError
	StatusURIInvalid
	StatusUpstreamFailed
)

var statusNames = map[Status]string{
	StatusOK:                       "ok",
	StatusUndefinedError:           "undefined_error",
	StatusRequestEncodeFailed:      "request_encode_failed",
	StatusRequestCompressFailed:    "request_compress_failed",
	StatusRequestSendFailed:        "request_send_failed",
	StatusResponseTimeout:          "response_timeout",
	StatusResponseParseFailed:      "response_parse_failed",
	StatusResponseDecompressFailed: "response_decompress_failed",
	StatusResponseDecodeFailed:     "response_decode_failed",
	StatusMethodNotFound:           "method_not_found",
	StatusServiceNotFound:          "service_not_found",
	StatusMetaError:                "meta_error",
	StatusURIInvalid:               "uri_invalid",
	StatusUpstreamFailed:           "upstream_failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown_status"
}

// StatusError wraps a Status as a Go error so it can flow through normal
// error-returning call sites while still being recoverable via AsStatus.
type StatusError struct {
	Status Status
	Cause  error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return e.Status.String() + ": " + e.Cause.Error()
	}
	return e.Status.String()
}

func (e *StatusError) Unwrap() error { return e.Cause }

// NewStatusError builds a StatusError, the idiomatic way callers surface a
// non-ok Status as an error return.
func NewStatusError(status Status, cause error) error {
	if status == StatusOK {
		return nil
	}
	return &StatusError{Status: status, Cause: cause}
}

// AsStatus extracts the Status carried by err, defaulting to
// StatusUndefinedError for plain errors that never went through a
// StatusError (e.g. an unexpected panic recovery).
func AsStatus(err error) Status {
	if err == nil {
		return StatusOK
	}
	if se, ok := err.(*StatusError); ok {
		return se.Status
	}
	return StatusUndefinedError
}
