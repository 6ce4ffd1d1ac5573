package model

import (
	"fmt"
	"strings"
)

// RiskLevel is an ordered threat level: RiskLow < RiskMedium < RiskHigh < RiskCritical.
type RiskLevel int

const (
	// RiskLow covers benign or informational content.
	RiskLow RiskLevel = iota

	// RiskMedium covers content worth keeping an eye on.
	RiskMedium

	// RiskHigh covers active threats such as marketplaces for stolen data.
	RiskHigh

	// RiskCritical covers content that needs immediate attention.
	RiskCritical
)

// RiskLevels lists every level in ascending order.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// String returns the lower-case name used in reports and artifacts.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the defined levels.
func (l RiskLevel) Valid() bool {
	return l >= RiskLow && l <= RiskCritical
}

// ParseRiskLevel parses a level name, ignoring case and surrounding space.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskLow, fmt.Errorf("unknown risk level %q", s)
	}
}

// RiskLevelForScore maps a 0-100 score onto a level. It is used when the
// analyzer omits the level or returns one that does not parse.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 90:
		return RiskCritical
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l RiskLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
