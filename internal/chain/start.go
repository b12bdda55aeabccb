package chain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmagro/poagov/internal/numeric"
)

// StartKind selects how the first window's start block is resolved.
type StartKind int

const (
	StartLatest StartKind = iota
	StartEarliest
	StartNumber
	StartTail
)

// StartBlock is where polling begins. Latest is the zero value.
type StartBlock struct {
	Kind StartKind
	N    uint64
}

func Latest() StartBlock { return StartBlock{Kind: StartLatest} }
func Earliest() StartBlock { return StartBlock{Kind: StartEarliest} }
func Number(n uint64) StartBlock { return StartBlock{Kind: StartNumber, N: n} }
func Tail(k uint64) StartBlock { return StartBlock{Kind: StartTail, N: k} }

func (s StartBlock) String() string {
	switch s.Kind {
	case StartEarliest:
		return "earliest"
	case StartNumber:
		return strconv.FormatUint(s.N, 10)
	case StartTail:
		return fmt.Sprintf("tail(%d)", s.N)
	default:
		return "latest"
	}
}

// ErrTailUnderflow is returned when a tail offset reaches before block 0.
var ErrTailUnderflow = errors.New("tail offset is larger than the last mined block")

// Resolve turns s into a concrete block number given the chain head.
func (s StartBlock) Resolve(lastMined uint64) (uint64, error) {
	switch s.Kind {
	case StartEarliest:
		return 0, nil
	case StartNumber:
		return s.N, nil
	case StartTail:
		if s.N > lastMined {
			return 0, fmt.Errorf("%w: tail %d, last mined %d", ErrTailUnderflow, s.N, lastMined)
		}
		return lastMined - s.N, nil
	default:
		return lastMined, nil
	}
}

// ParseStartBlock accepts "latest" (or empty), "earliest", a decimal or
// 0x-prefixed hex block number, or "-k" for k blocks behind the head.
func ParseStartBlock(arg string) (StartBlock, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))

	switch {
	case arg == "" || arg == "latest":
		return Latest(), nil
	case arg == "earliest":
		return Earliest(), nil
	case strings.HasPrefix(arg, "0x"):
		n, err := numeric.HexToUint64(arg)
		if err != nil {
			return StartBlock{}, fmt.Errorf("invalid start block %q: %w", arg, err)
		}
		return Number(n), nil
	case strings.HasPrefix(arg, "-"):
		k, err := strconv.ParseUint(arg[1:], 10, 64)
		if err != nil {
			return StartBlock{}, fmt.Errorf("invalid tail %q: %w", arg, err)
		}
		return Tail(k), nil
	}

	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return StartBlock{}, fmt.Errorf("invalid start block %q: %w", arg, err)
	}
	return Number(n), nil
}
