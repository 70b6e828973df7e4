package util

import (
	"errors"
	"iter"
	"slices"
)

var ErrEmptyGroup = errors.New("sequence group must not be empty")

// SkipCommonPrefix walks all sequences in lockstep while every sequence yields
// the same value, and returns what is left of each one. Tail i starts with the
// value of sequence i at the first differing position, followed by the rest of
// sequence i. When the shortest sequence runs out first, the longer ones keep
// everything past the compared region.
//
// Nothing is pulled from the inputs until one of the tails is ranged over. Each
// input is read once, whatever the group size: ranging its tail to the end, or
// breaking out of it, releases the input, and ranging a tail a second time
// yields nothing. Inputs found exhausted while skipping are released right
// away. A tail that is never ranged keeps its input open; callers that may
// leave tails unranged use SkipCommonPrefixWithStop.
func SkipCommonPrefix[T comparable](seqs []iter.Seq[T]) ([]iter.Seq[T], error) {
	tails, _, err := SkipCommonPrefixWithStop(seqs)
	return tails, err
}

// SkipCommonPrefixWithStop is SkipCommonPrefix plus a stop function that
// releases every input still open. After stop, unranged tails yield nothing.
// Calling stop more than once is fine.
func SkipCommonPrefixWithStop[T comparable](seqs []iter.Seq[T]) ([]iter.Seq[T], func(), error) {
	if len(seqs) == 0 {
		return nil, nil, ErrEmptyGroup
	}

	g := &prefixGroup[T]{seqs: seqs}

	tails := make([]iter.Seq[T], len(seqs))
	for i := range seqs {
		tails[i] = g.tail(i)
	}

	return tails, g.release, nil
}

// SkipCommonPrefixSlices is SkipCommonPrefix over materialized slices.
func SkipCommonPrefixSlices[T comparable](s [][]T) ([][]T, error) {
	seqs := make([]iter.Seq[T], len(s))
	for i, v := range s {
		seqs[i] = slices.Values(v)
	}

	tails, stop, err := SkipCommonPrefixWithStop(seqs)
	if err != nil {
		return nil, err
	}
	defer stop()

	out := make([][]T, len(tails))
	for i, tail := range tails {
		out[i] = slices.AppendSeq(make([]T, 0), tail)
	}

	return out, nil
}

type prefixGroup[T comparable] struct {
	seqs []iter.Seq[T]

	skipped  bool
	released bool
	next     []func() (T, bool)
	stop     []func()

	// the last tuple pulled; pending[i] is set when head[i] belongs to tail i
	head    []T
	pending []bool
}

func (g *prefixGroup[T]) tail(i int) iter.Seq[T] {
	return func(yield func(T) bool) {
		g.skip()
		if g.released {
			return
		}
		defer g.stop[i]()

		if g.pending[i] {
			g.pending[i] = false
			if !yield(g.head[i]) {
				return
			}
		}

		for {
			v, ok := g.next[i]()
			if !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (g *prefixGroup[T]) skip() {
	if g.skipped {
		return
	}
	g.skipped = true

	n := len(g.seqs)
	g.next = make([]func() (T, bool), n)
	g.stop = make([]func(), n)
	g.head = make([]T, n)
	g.pending = make([]bool, n)

	for i, s := range g.seqs {
		g.next[i], g.stop[i] = iter.Pull(s)
	}

	// a single sequence has no common prefix to skip
	if n == 1 {
		return
	}

	for {
		for i := range n {
			v, ok := g.next[i]()
			if !ok {
				g.stop[i]()
				// values already pulled at this position lie past the
				// compared region and stay with their sequences
				for j := range i {
					g.pending[j] = true
				}
				return
			}
			g.head[i] = v
		}

		if !allEqual(g.head) {
			for i := range g.pending {
				g.pending[i] = true
			}
			return
		}
	}
}

func (g *prefixGroup[T]) release() {
	if g.released {
		return
	}
	g.released = true

	// stop before anything was pulled: the inputs were never started
	if !g.skipped {
		g.skipped = true
		return
	}

	for _, stop := range g.stop {
		stop()
	}
	clear(g.pending)
}

func allEqual[T comparable](vals []T) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}
