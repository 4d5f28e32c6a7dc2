package progress

import (
	"fmt"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// LabelTable maps status ID to localized titles keyed by language code.
type LabelTable map[string]map[string]string

// Title returns the non-empty title for statusID in language.
func (t LabelTable) Title(statusID, language string) (string, bool) {
	if statusID == "" {
		return "", false
	}
	titles, ok := t[statusID]
	if !ok {
		return "", false
	}
	title := titles[language]
	return title, title != ""
}

// Project turns an ordered list of step IDs into progress steps. Steps before
// currentID are completed, currentID is current and the step right after it
// is upcoming. An empty or unknown currentID leaves every step pending.
func Project(order []string, currentID string, g *Graph, records []schema.TimingRecord, labels LabelTable, language string) []schema.ProgressStep {
	currentIndex := Order{IDs: order}.IndexOf(currentID)

	steps := make([]schema.ProgressStep, 0, len(order))
	for i, id := range order {
		node, _ := g.Node(id)
		steps = append(steps, schema.ProgressStep{
			ID:          id,
			Title:       stepTitle(node, i, labels, language),
			Completed:   currentIndex != -1 && i < currentIndex,
			Current:     i == currentIndex,
			Upcoming:    currentIndex != -1 && i == currentIndex+1,
			Kind:        string(node.Kind),
			StatusID:    node.StatusID,
			Description: node.Description,
			SLAMinutes:  ParseSLAMinutes(node.SLA),
			Timeline:    JoinTimeline(node, records),
		})
	}
	return steps
}

func stepTitle(n Node, i int, labels LabelTable, language string) string {
	if title, ok := labels.Title(n.StatusID, language); ok {
		return title
	}
	if n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("Step %d", i+1)
}
