package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const bookingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateBookingNumber returns a human-facing reference such as
// BK-20261016-7QK2MZ.
func GenerateBookingNumber(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(bookingAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// fall back to the clock
			n = big.NewInt(now.UnixNano() % int64(len(bookingAlphabet)))
		}
		suffix[i] = bookingAlphabet[n.Int64()]
	}
	return fmt.Sprintf("BK-%s-%s", now.UTC().Format("20060102"), suffix)
}
