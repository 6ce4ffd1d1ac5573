package fetcher

import "errors"

// ErrFetchFailed is returned when a page could not be retrieved or stored.
// The underlying cause is wrapped alongside it.
var ErrFetchFailed = errors.New("page fetch failed")
