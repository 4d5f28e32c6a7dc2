package progress

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

// EffectiveCurrent maps the case's stage pointer onto a step node.
//
// A pointer already on a step node is returned unchanged. A pointer on a
// control node is moved forward along its outgoing connections in declaration
// order; the "yes"-first rule of ExecutionOrder does not apply here. depth
// bounds how many consecutive control nodes may be crossed: 1 only looks at
// the pointer's direct targets. Values below 1 are treated as 1.
//
// The second return value is false when no step node is found within depth.
func EffectiveCurrent(g *Graph, cls Classifier, stage *schema.CurrentStage, depth int) (string, bool) {
	if stage == nil || stage.NodeID == "" {
		return "", false
	}
	node, ok := g.Node(stage.NodeID)
	if !ok {
		return "", false
	}
	if cls.IsStep(node) {
		return node.ID, true
	}
	if !cls.IsControl(node) {
		return "", false
	}
	if depth < 1 {
		depth = 1
	}

	visited := map[string]bool{node.ID: true}
	frontier := []string{node.ID}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, c := range g.Outgoing(id) {
				target, ok := g.Node(c.Target)
				if !ok {
					continue
				}
				if cls.IsStep(target) {
					return target.ID, true
				}
				if cls.IsControl(target) && !visited[target.ID] {
					visited[target.ID] = true
					next = append(next, target.ID)
				}
			}
		}
		frontier = next
	}
	return "", false
}
