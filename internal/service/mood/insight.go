package mood

import (
	"fmt"
	"strings"

	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/service/ai"
)

// HeuristicInsight describes the dominant label when no model is available.
func HeuristicInsight(moods []mood.Snapshot) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, m := range moods {
		label := strings.ToLower(strings.TrimSpace(m.DetectedEmotion))
		if label == "" {
			label = "unknown"
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	top := order[0]
	for _, label := range order[1:] {
		if counts[label] > counts[top] {
			top = label
		}
	}

	noun := "check-ins"
	if len(moods) == 1 {
		noun = "check-in"
	}
	summary := fmt.Sprintf("Across your last %d %s you most often felt %s (%d of %d).",
		len(moods), noun, top, counts[top], len(moods))
	if top == "unknown" {
		return summary
	}
	return summary + " " + ai.EmpathyMessage(top)
}
