// Package main provides the entry point for the chhaya CLI.
//
// chhaya searches dark-web search engines for a query through Tor, fetches
// the discovered .onion pages, optionally has a language model assess each
// page for threats, and prints a report per crawl job.
//
// Usage:
//
//	chhaya crawl <query>...
//	chhaya report <job-id>
//	chhaya check
//
// See --help for all available options.
package main

// main is the entry point for chhaya.
func main() {
	Execute()
}
