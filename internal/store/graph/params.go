// Package graph implements the Graph Client (spec.md §4.4): parameter-safe
// Cypher queries against a Neo4j property graph, with label management and
// caching, mirroring the relational store's visibility semantics via an
// integer sentinel for the open window.
package graph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bimatlas/core/internal/types"
)

// OpenSentinel is the integer that substitutes for "null" in valid_to_rev on
// graph nodes and edges, because the backend forbids null properties
// (spec.md §3, §9).
const OpenSentinel int64 = -1

var (
	globalIDPattern = regexp.MustCompile(`^[A-Za-z0-9_$]{22}$`)
	labelPattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// ValidateGlobalID enforces spec.md §4.4's global_id syntax rule: the IFC
// base64 alphabet plus '_' and '$', length exactly 22.
func ValidateGlobalID(id types.GlobalID) error {
	if !globalIDPattern.MatchString(string(id)) {
		return fmt.Errorf("%w: invalid global_id %q", types.ErrValidation, id)
	}
	return nil
}

// ValidateLabel enforces spec.md §4.4's label syntax rule, used for both
// node labels (IFC class names) and edge labels (IFC relationship entity
// names).
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: invalid label %q", types.ErrValidation, label)
	}
	return nil
}

// EscapeCypherString escapes a string value for safe embedding inside a
// Cypher string literal (backslash and quote escaping), for the rare case
// where a value must be embedded in query text rather than bound as a
// parameter (spec.md §4.4). Property values that aren't part of a pattern
// or label are always passed as bound parameters instead; this is reserved
// for label/global_id text that Neo4j's driver cannot parametrize.
func EscapeCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

// revisionFilter renders the revision-scoping predicate exactly as spec.md
// §4.4 specifies: "alias.branch_id = B AND alias.valid_from_rev <= R AND
// (alias.valid_to_rev = -1 OR alias.valid_to_rev > R)".
func revisionFilter(alias string, branchID, rev int64) string {
	return fmt.Sprintf(
		"%s.branch_id = %d AND %s.valid_from_rev <= %d AND (%s.valid_to_rev = %d OR %s.valid_to_rev > %d)",
		alias, branchID, alias, rev, alias, OpenSentinel, alias, rev,
	)
}
