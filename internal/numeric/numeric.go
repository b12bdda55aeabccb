// Package numeric converts between the wire representations used by
// Ethereum JSON-RPC and ABI encoding and the native types used by the poller.
package numeric

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedHex is returned for empty or non-hexadecimal quantities.
	ErrMalformedHex = errors.New("malformed hex quantity")
	// ErrOverflow is returned when a 256-bit value does not fit in 64 bits.
	ErrOverflow = errors.New("value overflows uint64")
)

var (
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
	mask64 = new(big.Int).SetUint64(math.MaxUint64)
)

// HexToUint64 parses a JSON-RPC quantity such as "0x1b4".
// The 0x prefix is optional.
func HexToUint64(s string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHex, s)
	}
	n, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHex, s)
	}
	return n, nil
}

// Uint64ToHex renders n as a JSON-RPC quantity.
func Uint64ToHex(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// Low64 returns the least significant 64 bits of v. Negative values are
// taken as their 256-bit two's complement first, matching EVM word layout.
func Low64(v *big.Int) uint64 {
	if v == nil {
		return 0
	}
	w := v
	if v.Sign() < 0 {
		w = new(big.Int).Add(v, two256)
	}
	return new(big.Int).And(w, mask64).Uint64()
}

// Uint64 converts v to uint64, failing when it is negative or too large.
func Uint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, v)
	}
	return v.Uint64(), nil
}

// Uint256ToTime interprets the low 64 bits of v as Unix seconds in UTC.
func Uint256ToTime(v *big.Int) time.Time {
	return time.Unix(int64(Low64(v)), 0).UTC()
}

// SignedProgress recovers the sign of a vote progress counter that the
// contract stores as a 256-bit word. The low 64 bits are compared with the
// number of voters: a value that cannot be a real vote count is read as the
// two's complement negative number value - 2^64.
func SignedProgress(raw *big.Int, totalVoters uint64) int64 {
	lsb := Low64(raw)
	if lsb <= totalVoters {
		return int64(lsb)
	}
	// Reinterpreting the bits yields value - 2^64 for any lsb above 2^63.
	return int64(lsb)
}
