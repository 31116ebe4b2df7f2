// Package ordernum generates and checks the human readable order numbers.
// A number is "ORD-" followed by ten digits, the last one a Luhn check digit,
// so a mistyped number is refused before it reaches the store.
package ordernum

import (
	"fmt"
	"github.com/phedde/luhn-algorithm"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	prefix = "ORD-"
	digits = 10
)

// Generate returns a new random order number
func Generate() string {
	body := rand.Int64N(900_000_000) + 100_000_000
	for d := int64(0); d < 10; d++ {
		if n := body*10 + d; luhn.IsValid(n) {
			return prefix + strconv.FormatInt(n, 10)
		}
	}
	// unreachable: exactly one check digit makes the number valid
	panic(fmt.Sprintf("no check digit for %d", body))
}

// Valid reports whether s is a well formed order number
func Valid(s string) bool {
	num, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(s)), prefix)
	if !ok || len(num) != digits {
		return false
	}
	for i := 0; i < len(num); i++ {
		if num[i] < '0' || num[i] > '9' {
			return false
		}
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return false
	}
	return luhn.IsValid(n)
}

// Normalize returns s in stored form
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
