package core

import (
	"errors"
	"math/rand"
	"strings"
)

// ErrNoEdges is returned when the engine topology has no eligible edges.
var ErrNoEdges = errors.New("no eligible edges")

// Edges lists the engine's edge ids with junction-internal ids
// (":"-prefixed) filtered out. Only these edges are valid reroute and
// target choices.
func Edges(eng Engine) ([]string, error) {
	all, err := eng.EdgeIDs()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, e := range all {
		if !strings.HasPrefix(e, ":") {
			out = append(out, e)
		}
	}
	return out, nil
}

// RandomEdge picks a uniformly random eligible edge, skipping any edge
// in exclude.
func RandomEdge(eng Engine, rng *rand.Rand, exclude ...string) (string, error) {
	edges, err := Edges(eng)
	if err != nil {
		return "", err
	}
	eligible := edges[:0]
	for _, e := range edges {
		if !containsString(exclude, e) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return "", ErrNoEdges
	}
	return eligible[rng.Intn(len(eligible))], nil
}
