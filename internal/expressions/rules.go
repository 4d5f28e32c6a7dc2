package expressions

import (
	"context"
	"strings"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
)

// DelayRule compiles an expr-lang predicate into a classifier delay test. The
// rule sees statusId, kind, label and description of the node, for example
// `statusId startsWith "W-"` or `label contains "hold"`. An empty rule yields
// nil. A rule that fails or returns a non-bool at runtime does not match.
func DelayRule(e *ExprEngine, rule string) (func(progress.Node) bool, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, nil
	}
	if _, err := e.Compile(rule); err != nil {
		return nil, err
	}
	return func(n progress.Node) bool {
		ok, err := EvaluateBool(context.Background(), e, rule, map[string]any{
			"statusId":    n.StatusID,
			"kind":        string(n.Kind),
			"label":       n.Label,
			"description": n.Description,
		})
		return err == nil && ok
	}, nil
}
