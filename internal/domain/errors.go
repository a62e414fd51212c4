package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by adapters and the pipeline. Callers wrap these with
// context and test with errors.Is.
var (
	// ErrSourceUnavailable is a network failure or non-2xx status that
	// persisted after retries. The location/date is treated as no data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedResponse means the body failed format validation.
	// It is never retried.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrConfiguration covers roster or curve problems that retrying cannot fix.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingCurve is returned for elevation-typed locations with no curve.
	ErrMissingCurve = fmt.Errorf("%w: missing elevation curve", ErrConfiguration)

	// ErrUnknownSource is returned when no adapter serves a location's source type.
	ErrUnknownSource = fmt.Errorf("%w: unknown source type", ErrConfiguration)
)
