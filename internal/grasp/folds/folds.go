// Package folds partitions movement identifiers into cross-validation
// folds. Identifier conventions stay with the caller: every function
// takes a groupOf func that maps an identifier to its stratum.
package folds

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Strategy names a partitioning scheme.
type Strategy string

const (
	// AllInStrategy stratifies every group across k folds.
	AllInStrategy Strategy = "all-in"
	// OneOutStrategy holds out one whole group per fold.
	OneOutStrategy Strategy = "one-out"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case AllInStrategy, OneOutStrategy:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown fold strategy %q (want %q or %q)", s, AllInStrategy, OneOutStrategy)
}

// Split is one train/test assignment.
type Split struct {
	Train []string
	Test  []string
}

// groups buckets ids by groupOf, keeping first-seen order of both groups
// and members.
func groups(ids []string, groupOf func(string) string) [][]string {
	index := map[string]int{}
	var out [][]string
	for _, id := range ids {
		g := groupOf(id)
		i, ok := index[g]
		if !ok {
			i = len(out)
			index[g] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], id)
	}
	return out
}

// AllIn deals every group's members, shuffled with rng, into k folds.
// Each fold receives len/k members of every group; the remainder goes
// to the currently smallest folds, so fold sizes differ by at most one
// member per group.
func AllIn(ids []string, groupOf func(string) string, k int, rng *rand.Rand) ([][]string, error) {
	if k < 1 {
		return nil, fmt.Errorf("fold count must be positive, got %d", k)
	}
	partitions := make([][]string, k)
	for _, members := range groups(ids, groupOf) {
		members = append([]string(nil), members...)
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

		div, mod := len(members)/k, len(members)%k
		for i := range partitions {
			partitions[i] = append(partitions[i], members[i*div:(i+1)*div]...)
		}
		sort.SliceStable(partitions, func(i, j int) bool { return len(partitions[i]) < len(partitions[j]) })
		for i, id := range members[k*div : k*div+mod] {
			partitions[i] = append(partitions[i], id)
		}
	}
	return partitions, nil
}

// OneOut returns one fold per distinct group in first-seen order.
func OneOut(ids []string, groupOf func(string) string) [][]string {
	return groups(ids, groupOf)
}

// Splits turns k partitions into k splits; split i tests on partition i
// and trains on the rest in partition order.
func Splits(partitions [][]string) []Split {
	out := make([]Split, len(partitions))
	for i, test := range partitions {
		var train []string
		for j, p := range partitions {
			if j != i {
				train = append(train, p...)
			}
		}
		out[i] = Split{Train: train, Test: append([]string(nil), test...)}
	}
	return out
}

// Assignment maps every identifier to the index of its partition.
func Assignment(partitions [][]string) map[string]int {
	out := map[string]int{}
	for i, p := range partitions {
		for _, id := range p {
			out[id] = i
		}
	}
	return out
}

// PrefixGroup groups identifiers by their first n sep-separated fields.
// PrefixGroup(2, "_") maps "P3_L_17" to "P3_L".
func PrefixGroup(n int, sep string) func(string) string {
	return func(id string) string {
		parts := strings.SplitN(id, sep, n+1)
		if len(parts) > n {
			parts = parts[:n]
		}
		return strings.Join(parts, sep)
	}
}
