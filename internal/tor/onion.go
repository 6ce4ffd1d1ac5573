package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix marks an onion-service host name.
const OnionSuffix = ".onion"

const onionV3Version = 0x03

var (
	onionV3Pattern        = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV3ContentPattern = regexp.MustCompile(`[a-z2-7]{56}\.onion`)
	checksumPrefix        = []byte(".onion checksum")
)

// ContainsOnion reports whether s mentions an onion host. This is the loose
// marker check used to filter discovery output; it does not validate.
func ContainsOnion(s string) bool {
	return strings.Contains(s, OnionSuffix)
}

// IsValidV3Address reports whether address (host only, with the .onion
// suffix) is a v3 onion address with a correct checksum. Case is ignored.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) || checksum (2) || version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

// ExtractV3Addresses returns the checksum-valid v3 addresses mentioned in
// text, lower-cased, deduplicated, in order of first appearance.
func ExtractV3Addresses(text string) []string {
	matches := onionV3ContentPattern.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		if IsValidV3Address(m) {
			out = append(out, m)
		}
	}
	return out
}
