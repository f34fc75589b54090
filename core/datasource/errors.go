package datasource

import "errors"

// --- Error Definitions ---

var (
	// ErrFetchFailed wraps every error returned by a Provider.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrInvalidPage reports a provider page that cannot be merged without
	// violating the buffer bounds. The returned error also wraps
	// buffer.ErrRange or buffer.ErrInvalidLength.
	ErrInvalidPage = errors.New("invalid page from provider")
	ErrNilProvider = errors.New("data source requires a provider")
)
