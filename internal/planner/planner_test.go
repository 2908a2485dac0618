package planner

import (
	"reflect"
	"testing"
)

func TestDecomposeLineFormat(t *testing.T) {
	feedback := `Summary of problems follows.
TASK: introduction overstates the contribution | WHERE: introduction motivates problem | REQUIRE: scale the claim to the evidence
- TASK: methods skip the ablation detail | WHERE: experiment setup paragraph | REQUIRE: describe the ablation protocol
Integrated score: 70/100`

	tasks := Decompose(feedback)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	first := tasks[0]
	if first.Problem != "introduction overstates the contribution" {
		t.Errorf("Problem = %q", first.Problem)
	}
	if first.Requirement != "scale the claim to the evidence" {
		t.Errorf("Requirement = %q", first.Requirement)
	}
	want := []string{"introduction", "motivates", "problem"}
	if !reflect.DeepEqual(first.LocatorHint, want) {
		t.Errorf("LocatorHint = %v, want %v", first.LocatorHint, want)
	}
	if first.TargetNode != -1 {
		t.Errorf("TargetNode = %d, want -1 (unresolved)", first.TargetNode)
	}
	if first.ID == "" || first.ID == tasks[1].ID {
		t.Error("task IDs must be unique and non-empty")
	}
}

func TestDecomposeJSONFallback(t *testing.T) {
	feedback := "```json\n" + `[
  {"description": "weak conclusion", "criticism": "conclusion merely restates the abstract", "location": "final section closing remarks", "action": "synthesize the findings", "expected_result": "conclusion draws new implications"}
]` + "\n```"

	tasks := Decompose(feedback)
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Problem != "conclusion merely restates the abstract" {
		t.Errorf("Problem = %q", tasks[0].Problem)
	}
	if tasks[0].Requirement != "conclusion draws new implications" {
		t.Errorf("Requirement = %q", tasks[0].Requirement)
	}
	if len(tasks[0].LocatorHint) == 0 {
		t.Error("LocatorHint empty, want keywords from location")
	}
}

func TestDecomposeSynthesizesGenericTask(t *testing.T) {
	tasks := Decompose("the reviewers wrote prose with no recognizable task structure")
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want exactly 1 generic task", len(tasks))
	}
	if tasks[0].Requirement == "" {
		t.Error("generic task has no requirement")
	}
	if tasks[0].TargetNode != -1 {
		t.Errorf("TargetNode = %d, want -1", tasks[0].TargetNode)
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"filters short and stopwords", "fix the flow of this long argument", []string{"flow", "long", "argument"}},
		{"dedupes", "evidence evidence Evidence", []string{"evidence"}},
		{"empty", "a an of", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Keywords(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Keywords(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
