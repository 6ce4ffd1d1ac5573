// Package fetcher retrieves single pages through the anonymizing proxy and
// reduces them to the text, title and image references the rest of the
// pipeline consumes.
//
// A successful Fetch always leaves a text artifact in the pages directory
// before it returns. Failed fetches leave nothing behind and report
// ErrFetchFailed; retrying is left to the proxy transport.
package fetcher
