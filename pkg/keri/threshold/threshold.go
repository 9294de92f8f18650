// Copyright 2025 Certen Protocol
//
// Package threshold evaluates simple and weighted M-of-N signing and
// witness thresholds. Thresholds are flat tagged data, not polymorphic
// types — all evaluation is a pure function over that data, per the
// design note in spec.md §9.
package threshold

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
)

// Kind distinguishes the two threshold shapes a "kt"/"bt" field can take.
type Kind int

const (
	Simple Kind = iota
	Weighted
)

// Threshold is a closed tagged value: either Simple(N) or Weighted(clauses).
// Clauses are ordered lists of non-negative rational weights, one weight
// per signer index, parsed with exact rational arithmetic so fractional
// boundaries like 1/3+1/3+1/3 compare equal to 1, never 0.999....
type Threshold struct {
	Kind    Kind
	N       int
	Clauses [][]*big.Rat
}

// ErrInvalidThreshold covers malformed "kt"/"bt" fields: unparseable
// fraction strings, empty clauses, or clause arity mismatches.
type ErrInvalidThreshold struct{ Msg string }

func (e *ErrInvalidThreshold) Error() string { return "keri: invalid threshold: " + e.Msg }

func invalid(format string, args ...any) error {
	return &ErrInvalidThreshold{Msg: fmt.Sprintf(format, args...)}
}

// Parse decodes a raw "kt"/"bt" JSON field: a quoted integer string for
// Simple, or an array of arrays of fraction strings for Weighted.
func Parse(raw json.RawMessage) (Threshold, error) {
	if len(raw) == 0 {
		return Threshold{}, invalid("empty threshold field")
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parseSimple(asString)
	}
	var asClauses [][]string
	if err := json.Unmarshal(raw, &asClauses); err == nil {
		return parseWeighted(asClauses)
	}
	return Threshold{}, invalid("field is neither a quoted integer nor an array of arrays")
}

func parseSimple(s string) (Threshold, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || !n.IsInt64() {
		return Threshold{}, invalid("simple threshold %q is not a non-negative integer", s)
	}
	return Threshold{Kind: Simple, N: int(n.Int64())}, nil
}

func parseWeighted(clauses [][]string) (Threshold, error) {
	if len(clauses) == 0 {
		return Threshold{}, invalid("weighted threshold has no clauses")
	}
	out := make([][]*big.Rat, len(clauses))
	for ci, clause := range clauses {
		if len(clause) == 0 {
			return Threshold{}, invalid("clause %d is empty", ci)
		}
		weights := make([]*big.Rat, len(clause))
		for wi, frac := range clause {
			r, ok := new(big.Rat).SetString(frac)
			if !ok || r.Sign() < 0 {
				return Threshold{}, invalid("clause %d weight %d (%q) is not a non-negative rational", ci, wi, frac)
			}
			weights[wi] = r
		}
		out[ci] = weights
	}
	// Clause arity must be uniform and equal to |signing_keys|; that
	// equality is checked by the caller (which knows the key count), but
	// uniformity across clauses is checked here since it is intrinsic to
	// the threshold value itself.
	arity := len(out[0])
	for ci, weights := range out {
		if len(weights) != arity {
			return Threshold{}, invalid("clause %d has arity %d, clause 0 has arity %d", ci, len(weights), arity)
		}
	}
	return Threshold{Kind: Weighted, Clauses: out}, nil
}

// CheckArity validates that every clause's weight count equals keyCount,
// the size of the signing-key (or witness) list this threshold governs.
func (t Threshold) CheckArity(keyCount int) error {
	if t.Kind != Weighted {
		return nil
	}
	for ci, clause := range t.Clauses {
		if len(clause) != keyCount {
			return invalid("clause %d has arity %d, want %d (key count)", ci, len(clause), keyCount)
		}
	}
	return nil
}

// IsSatisfiedBy reports whether the given set of present signer indices
// satisfies this threshold. present need not be sorted or deduplicated.
func (t Threshold) IsSatisfiedBy(present []int) bool {
	switch t.Kind {
	case Simple:
		return len(Dedupe(present)) >= t.N
	case Weighted:
		set := Dedupe(present)
		for _, clause := range t.Clauses {
			sum := new(big.Rat)
			for _, idx := range set {
				if idx >= 0 && idx < len(clause) {
					sum.Add(sum, clause[idx])
				}
			}
			if sum.Cmp(big.NewRat(1, 1)) >= 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MinSignatures returns a lower bound on the number of distinct signers
// needed to have any chance of satisfying this threshold, used as a
// fast-path check before collecting and verifying every signature.
func (t Threshold) MinSignatures() int {
	switch t.Kind {
	case Simple:
		return t.N
	case Weighted:
		best := -1
		for _, clause := range t.Clauses {
			n := minSignersForClause(clause)
			if best == -1 || n < best {
				best = n
			}
		}
		if best == -1 {
			return 0
		}
		return best
	default:
		return 0
	}
}

// minSignersForClause greedily sorts a clause's weights descending and
// accumulates until the running sum reaches 1, returning how many
// weights that took — the fewest signers that could possibly satisfy
// this clause alone.
func minSignersForClause(clause []*big.Rat) int {
	sorted := append([]*big.Rat(nil), clause...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) > 0 })
	sum := new(big.Rat)
	one := big.NewRat(1, 1)
	for i, w := range sorted {
		sum.Add(sum, w)
		if sum.Cmp(one) >= 0 {
			return i + 1
		}
	}
	return len(sorted)
}

// Dedupe removes duplicate signature indices, preserving first-seen order.
func Dedupe(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
