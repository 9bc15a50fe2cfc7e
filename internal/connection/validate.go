package connection

import (
	"fmt"
	"sort"

	"smartclass/internal/domain"
)

type Problem string

const (
	ProblemOverflow    Problem = "overflow"
	ProblemMissingPair Problem = "missing-pair"
)

// Diagnostic describes a connection group that cannot be played as-is.
type Diagnostic struct {
	GroupID string   `json:"groupId"`
	NodeIDs []string `json:"nodeIds"`
	Problem Problem  `json:"problem"`
	Message string   `json:"message"`
}

// Diagnose reports every group that does not have exactly two nodes.
// Groups are returned in id order.
func Diagnose(elements []domain.Element) []Diagnostic {
	groups := make(map[string][]string)
	for _, el := range elements {
		if !el.Type.Connectable() {
			continue
		}
		if g := el.Connection().GroupID; g != "" {
			groups[g] = append(groups[g], el.ID)
		}
	}
	keys := make([]string, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Strings(keys)

	var out []Diagnostic
	for _, g := range keys {
		members := groups[g]
		switch {
		case len(members) > 2:
			out = append(out, Diagnostic{
				GroupID: g,
				NodeIDs: members,
				Problem: ProblemOverflow,
				Message: fmt.Sprintf("group %s is shared by %d nodes, attempts are disabled", g, len(members)),
			})
		case len(members) == 1:
			out = append(out, Diagnostic{
				GroupID: g,
				NodeIDs: members,
				Problem: ProblemMissingPair,
				Message: fmt.Sprintf("node %s has no pair in group %s", members[0], g),
			})
		}
	}
	return out
}

// CheckGroupCapacity is a builder.ElementValidator that refuses a third node
// in a connection group.
func CheckGroupCapacity(others []domain.Element, candidate domain.Element) error {
	if !candidate.Type.Connectable() {
		return nil
	}
	group := candidate.Connection().GroupID
	if group == "" {
		return nil
	}
	n := 0
	for _, el := range others {
		if el.ID != candidate.ID && el.Type.Connectable() && el.Connection().GroupID == group {
			n++
		}
	}
	if n >= 2 {
		return fmt.Errorf("%w: %q", ErrConnectionGroupFull, group)
	}
	return nil
}
