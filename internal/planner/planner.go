// Package planner turns integrated critique feedback into atomic
// revision tasks the patch executor can act on one at a time.
package planner

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"scribe/internal/logging"
)

// RevisionTask is one atomic unit of revision work. TargetNode is -1
// until the patch executor resolves the locator hint against the tree;
// tasks that never resolve are skipped.
type RevisionTask struct {
	ID          string   `json:"id"`
	Problem     string   `json:"problem"`
	Requirement string   `json:"requirement"`
	LocatorHint []string `json:"locator_hint"`
	TargetNode  int      `json:"target_node"`
}

// taskLinePattern parses the constrained line format the synthesis prompt
// requests: "TASK: <problem> | WHERE: <keywords> | REQUIRE: <requirement>".
var taskLinePattern = regexp.MustCompile(`(?i)^\s*(?:[-*\d.]+\s*)?TASK\s*[:：]\s*(.+?)\s*\|\s*WHERE\s*[:：]\s*(.+?)\s*\|\s*REQUIRE\s*[:：]\s*(.+)$`)

// jsonTask mirrors the JSON array format older collaborators emit.
type jsonTask struct {
	Description string `json:"description"`
	Criticism   string `json:"criticism"`
	Location    string `json:"location"`
	Action      string `json:"action"`
	Expected    string `json:"expected_result"`
}

// Decompose parses integrated feedback into tasks. The line-oriented
// format is primary; a JSON array is accepted as fallback. When nothing
// parses at all, one generic strengthening task is synthesized so the
// round still makes progress.
func Decompose(feedback string) []*RevisionTask {
	tasks := parseLines(feedback)
	if len(tasks) == 0 {
		tasks = parseJSON(feedback)
	}
	if len(tasks) == 0 {
		logging.PlannerWarn("no tasks parsed from %d bytes of feedback, synthesizing generic task", len(feedback))
		tasks = []*RevisionTask{genericTask()}
	}

	logging.Planner("decomposed feedback into %d tasks", len(tasks))
	return tasks
}

func parseLines(feedback string) []*RevisionTask {
	var tasks []*RevisionTask
	for _, line := range strings.Split(feedback, "\n") {
		m := taskLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tasks = append(tasks, &RevisionTask{
			ID:          uuid.NewString(),
			Problem:     strings.TrimSpace(m[1]),
			Requirement: strings.TrimSpace(m[3]),
			LocatorHint: Keywords(m[2]),
			TargetNode:  -1,
		})
	}
	return tasks
}

func parseJSON(feedback string) []*RevisionTask {
	payload := extractJSONArray(feedback)
	if payload == "" {
		return nil
	}

	var raw []jsonTask
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		logging.PlannerWarn("feedback JSON did not parse: %v", err)
		return nil
	}

	var tasks []*RevisionTask
	for _, jt := range raw {
		problem := strings.TrimSpace(jt.Criticism)
		if problem == "" {
			problem = strings.TrimSpace(jt.Description)
		}
		requirement := strings.TrimSpace(jt.Expected)
		if requirement == "" {
			requirement = strings.TrimSpace(jt.Action)
		}
		if problem == "" && requirement == "" {
			continue
		}
		tasks = append(tasks, &RevisionTask{
			ID:          uuid.NewString(),
			Problem:     problem,
			Requirement: requirement,
			LocatorHint: Keywords(jt.Location + " " + problem),
			TargetNode:  -1,
		})
	}
	return tasks
}

// extractJSONArray pulls the first [...] block out of feedback, tolerating
// markdown code fences around it.
func extractJSONArray(text string) string {
	cleaned := text
	if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	}
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

func genericTask() *RevisionTask {
	return &RevisionTask{
		ID:          uuid.NewString(),
		Problem:     "argumentation lacks depth and supporting evidence",
		Requirement: "strengthen the argumentation with clearer claims and better-supported reasoning",
		LocatorHint: nil,
		TargetNode:  -1,
	}
}

// stopwords excluded from locator keywords.
var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "with": true, "for": true,
	"this": true, "from": true, "are": true, "was": true, "has": true,
	"have": true, "not": true, "but": true, "its": true, "into": true,
}

// Keywords tokenizes a locator hint into lowercase keywords longer than
// three characters, preserving first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 0x80
	}) {
		if len(w) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
