// Package timex converts line rates into durations.
package timex

import "time"

// CharTime returns how long one character of bitsPerChar bits (start, data,
// parity and stop bits together) occupies the line at baud.
// baud==0 is coerced to 1 to avoid division by zero.
func CharTime(baud uint32, bitsPerChar int) time.Duration {
	if baud == 0 {
		baud = 1
	}
	if bitsPerChar <= 0 {
		bitsPerChar = 10
	}
	return time.Duration(uint64(bitsPerChar) * uint64(time.Second) / uint64(baud))
}
