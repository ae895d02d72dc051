package scraper

import "fmt"

// ErrorKind classifies a per-item fetch failure.
type ErrorKind int

const (
	// Transient failures (network errors, timeouts, rate limiting) are
	// retry-eligible on the next cycle.
	Transient ErrorKind = iota
	// NotFound means the source confirmed the item no longer exists.
	NotFound
	// Malformed means extraction could not parse the response.
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case NotFound:
		return "not_found"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is the typed per-item failure produced by the fetch pipeline.
// It never escapes a batch call: each item carries its own error.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s fetch error for %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s", e.Kind, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractError is returned by an Extractor when the response shape cannot
// be parsed into a record.
type ExtractError struct {
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extract error: %s", e.Reason)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
