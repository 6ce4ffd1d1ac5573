// Package config defines chhaya's runtime options, their defaults, and the
// optional .chhaya YAML file that overrides them.
package config
