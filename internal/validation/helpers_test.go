package validation

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

func node(id string, kind schema.NodeType, status string) schema.NodeDefinition {
	n := schema.NodeDefinition{ID: id, Type: kind}
	n.Data.Label = id
	n.Data.Config.Action = status
	return n
}

func conn(src, dst string) schema.ConnectionDefinition {
	return schema.ConnectionDefinition{Source: src, Target: dst}
}

// linearDef is start -> A -> B -> end with both steps bound to statuses.
func linearDef() *schema.SOPDefinition {
	return &schema.SOPDefinition{
		Nodes: []schema.NodeDefinition{
			node("S", schema.NodeTypeStart, ""),
			node("A", schema.NodeTypeProcess, "S1"),
			node("B", schema.NodeTypeDispatch, "S2"),
			node("E", schema.NodeTypeEnd, ""),
		},
		Connections: []schema.ConnectionDefinition{
			conn("S", "A"), conn("A", "B"), conn("B", "E"),
		},
	}
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}
