package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a stable code surfaced to clients at the API boundary.
type ErrorKind string

const (
	KindUnsupportedPlatform    ErrorKind = "UnsupportedPlatform"
	KindMalformedURL           ErrorKind = "MalformedURL"
	KindNoCaptionsAvailable    ErrorKind = "NoCaptionsAvailable"
	KindVideoUnavailable       ErrorKind = "VideoUnavailable"
	KindAllStrategiesExhausted ErrorKind = "AllStrategiesExhausted"
	KindUpstreamUnavailable    ErrorKind = "UpstreamUnavailable"
	KindMalformedResponse      ErrorKind = "MalformedResponse"
	KindEncodingFailure        ErrorKind = "EncodingFailure"
	KindInvalidInput           ErrorKind = "InvalidInput"
	KindTimeout                ErrorKind = "Timeout"
	KindRateLimited            ErrorKind = "RateLimited"
	KindInternal               ErrorKind = "Internal"
)

// Sentinel causes reported by fetch strategies.
var (
	// ErrNoCaptions means the video exists but carries no caption track.
	ErrNoCaptions = errors.New("no caption track available")
	// ErrBlocked means the platform refused automated access (rate limit, bot check, IP block).
	ErrBlocked = errors.New("platform is blocking automated access")
	// ErrVideoUnavailable means the video is private, removed or never existed.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrNotApplicable means the strategy cannot serve this platform; it is skipped, not failed.
	ErrNotApplicable = errors.New("strategy not applicable to platform")
)

// ClassificationError reports an input URL that could not be classified.
type ClassificationError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify %q: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("classify %q: %s", e.URL, e.Kind)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// StrategyError records one failed link of the fetch chain.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return e.Strategy + ": " + e.Err.Error()
}

func (e StrategyError) Unwrap() error { return e.Err }

// FetchError reports that no strategy produced a transcript.
// Attempts holds every underlying cause in chain order.
type FetchError struct {
	Kind     ErrorKind
	VideoID  string
	Attempts []StrategyError
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("fetch transcript %s: %s [%s]", e.VideoID, e.Kind, strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a)
	}
	return errs
}

// Blocked reports whether any strategy failed because of upstream blocking.
func (e *FetchError) Blocked() bool {
	for _, a := range e.Attempts {
		if errors.Is(a.Err, ErrBlocked) {
			return true
		}
	}
	return false
}

// InputError reports a request field that failed validation at the boundary.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Field + ": " + e.Message }

// GenerationError reports a failure of the completion upstream or its output.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate insights: %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RenderError reports an internal document/image encoder fault.
type RenderError struct {
	Kind   ErrorKind
	Format ExportFormat
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s: %v", e.Format, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// KindOf extracts the boundary error kind from any component error.
func KindOf(err error) ErrorKind {
	var ie *InputError
	if errors.As(err, &ie) {
		return KindInvalidInput
	}
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}
