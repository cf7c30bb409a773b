package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies provider failures.
type Kind int

const (
	// KindUnexpected covers malformed responses and provider errors that are neither transient nor about the photo.
	KindUnexpected Kind = iota
	// KindContent means the photo itself was unusable (no face, bad image). Never retried.
	KindContent
	// KindTransient means the provider was rate limited or unreachable. Retried.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindTransient:
		return "transient"
	default:
		return "unexpected"
	}
}

// Error is the only error shape a Provider returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ContentError(msg string) *Error {
	return &Error{Kind: KindContent, Message: msg}
}

func TransientError(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

func UnexpectedError(msg string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

// KindOf reports the Kind of err. Errors that are not *Error count as unexpected.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

const (
	markerConcurrencyLimit = "CONCURRENCY_LIMIT_EXCEEDED"
	msgNoFace              = "No face detected in the image"
)

// Face++ error_message values that describe the uploaded image rather than the service.
var imageErrorMarkers = []string{
	"IMAGE_ERROR_UNSUPPORTED_FORMAT",
	"INVALID_IMAGE_SIZE",
	"IMAGE_FILE_TOO_LARGE",
	"IMAGE_DOWNLOAD_TIMEOUT",
	"INVALID_IMAGE_FACE_TOKEN",
}

// ClassifyResponse turns a non-2xx Face++ reply into an Error.
// This is the only place provider bodies are inspected for markers.
func ClassifyResponse(status int, body []byte) *Error {
	text := strings.TrimSpace(string(body))

	var payload struct {
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.ErrorMessage != "" {
		text = payload.ErrorMessage
	}

	switch {
	case strings.Contains(text, markerConcurrencyLimit):
		return TransientError("Face++ API is rate limited", errors.New(text))
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return TransientError(fmt.Sprintf("Face++ API unavailable (status=%d)", status), errors.New(text))
	}

	for _, marker := range imageErrorMarkers {
		if strings.Contains(text, marker) {
			return &Error{Kind: KindContent, Message: "The photo could not be processed", Err: errors.New(text)}
		}
	}

	return UnexpectedError(fmt.Sprintf("Face++ API error (status=%d)", status), errors.New(text))
}
