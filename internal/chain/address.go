package chain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// IsAddress reports whether s looks like a valid wallet address: 0x followed
// by 40 hex digits. All-lowercase and all-uppercase forms are accepted as-is;
// mixed case must carry a valid EIP-55 checksum.
func IsAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return false
	}
	lower := strings.ToLower(body)
	if body == lower || body == strings.ToUpper(body) {
		return true
	}
	return body == checksumBody(lower)
}

// ChecksumAddress returns the EIP-55 form of a valid address.
func ChecksumAddress(s string) string {
	return "0x" + checksumBody(strings.ToLower(strings.TrimPrefix(s, "0x")))
}

func checksumBody(lower string) string {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	sum := hash.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		// Uppercase when the corresponding checksum nibble is >= 8.
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
