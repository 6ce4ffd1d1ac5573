// Package tor provides chhaya's proxied fetch capability.
//
// Client dials through a Tor SOCKS5 proxy and produces HTTP clients whose
// transport retries transport errors and throttling/gateway statuses with
// exponential backoff (RetryTransport). Daemon starts a private Tor process
// through tornago when no system Tor is available. The onion helpers
// classify and extract onion-service addresses.
package tor
