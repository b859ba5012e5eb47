package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// signatureMaxTypes bounds how many distinct indicator types feed the
// signature. Sorting before truncation makes the result order-independent.
const signatureMaxTypes = 5

// Signature computes a stable fingerprint of an analysis outcome: the SHA-256
// hex digest over the device ID and the first five distinct indicator types
// in lexicographic order. Two outcomes with the same device and the same
// (truncated) indicator-type set always produce the same signature, which is
// what the dedup window keys on.
func Signature(deviceID string, indicators []Indicator) string {
	seen := make(map[string]bool, len(indicators))
	var types []string
	for _, ind := range indicators {
		if !seen[ind.Type] {
			seen[ind.Type] = true
			types = append(types, ind.Type)
		}
	}
	sort.Strings(types)
	if len(types) > signatureMaxTypes {
		types = types[:signatureMaxTypes]
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", deviceID, strings.Join(types, ","))
	return hex.EncodeToString(h.Sum(nil))
}
