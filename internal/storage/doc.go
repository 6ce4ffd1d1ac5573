// Package storage owns chhaya's artifact directory: fetched page text,
// analysis report JSON, and discovery CSV files. It knows the naming
// rules for each artifact so that writers and readers agree on them.
package storage
