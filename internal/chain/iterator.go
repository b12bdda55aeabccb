// Package chain walks the chain head in contiguous, inclusive block windows.
package chain

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// BlockSource reports the number of the most recently mined block.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Window is an inclusive block range. Start <= Stop.
type Window struct {
	Start uint64
	Stop  uint64
}

func (w Window) String() string { return fmt.Sprintf("%d..%d", w.Start, w.Stop) }

// Len is the number of blocks in the window.
func (w Window) Len() uint64 { return w.Stop - w.Start + 1 }

// StartBlockExceedsLastMinedError is returned when the requested start block
// has not been mined yet.
type StartBlockExceedsLastMinedError struct {
	Start     uint64
	LastMined uint64
}

func (e *StartBlockExceedsLastMinedError) Error() string {
	return fmt.Sprintf("start block %d exceeds last mined block %d", e.Start, e.LastMined)
}

// Iterator yields windows that tile the chain from the start block onward:
// every window begins one block after the previous one ended. It is
// single-use and not safe for concurrent use.
type Iterator struct {
	src      BlockSource
	interval time.Duration

	start   uint64
	stop    uint64
	emitted bool
	done    bool
}

// New resolves start against the current head. No window is produced if
// the resolved start is ahead of the head.
func New(ctx context.Context, src BlockSource, start StartBlock, pollInterval time.Duration) (*Iterator, error) {
	lastMined, err := src.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch last mined block: %w", err)
	}

	first, err := start.Resolve(lastMined)
	if err != nil {
		return nil, err
	}
	if first > lastMined {
		return nil, &StartBlockExceedsLastMinedError{Start: first, LastMined: lastMined}
	}

	return &Iterator{
		src:      src,
		interval: pollInterval,
		start:    first,
		stop:     lastMined,
	}, nil
}

// Next returns the next window. It blocks, polling the head every
// pollInterval, until the head has moved past the block after the previous
// window's stop. The bool is false once ctx is cancelled, and stays false on
// every later call. A failure to read the head is returned without
// advancing, so a later call retries the same window.
func (it *Iterator) Next(ctx context.Context) (Window, bool, error) {
	if it.done {
		return Window{}, false, nil
	}

	if it.emitted {
		next := it.stop + 1
		head := it.stop
		for next >= head {
			if !it.sleep(ctx) {
				return Window{}, false, nil
			}
			var err error
			head, err = it.src.BlockNumber(ctx)
			if err != nil {
				if ctx.Err() != nil {
					it.done = true
					return Window{}, false, nil
				}
				return Window{}, false, fmt.Errorf("fetch last mined block: %w", err)
			}
		}
		it.start, it.stop = next, head
	}

	if ctx.Err() != nil {
		it.done = true
		return Window{}, false, nil
	}

	it.emitted = true
	return Window{Start: it.start, Stop: it.stop}, true, nil
}

func (it *Iterator) sleep(ctx context.Context) bool {
	t := time.NewTimer(it.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		it.done = true
		return false
	case <-t.C:
		return true
	}
}

// Windows adapts Next to a range-over-func sequence. The sequence ends at
// cancellation or after yielding the first error.
func (it *Iterator) Windows(ctx context.Context) iter.Seq2[Window, error] {
	return func(yield func(Window, error) bool) {
		for {
			w, ok, err := it.Next(ctx)
			if err != nil {
				yield(Window{}, err)
				return
			}
			if !ok || !yield(w, nil) {
				return
			}
		}
	}
}
