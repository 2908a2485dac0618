package citation

import (
	"reflect"
	"testing"
)

func TestExtractMarkers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"none", "plain prose with no citations", []int{}},
		{"single", "as shown in [3].", []int{3}},
		{"adjacent", "prior work [3][7] agrees", []int{3, 7}},
		{"duplicates collapse", "[2] and again [2]", []int{2}},
		{"unsorted input", "[9] then [1] then [5]", []int{1, 5, 9}},
		{"zero rejected", "bad [0] marker", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMarkers(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMarkers(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsMarkerSuperset(t *testing.T) {
	tests := []struct {
		name          string
		after, before string
		want          bool
	}{
		{"identical", "[3][7]", "[3][7]", true},
		{"added marker ok", "[3][7][9]", "[3][7]", true},
		{"lost marker rejected", "[3]", "[3][7]", false},
		{"empty before", "anything", "", true},
		{"reordered", "[7] text [3]", "[3][7]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarkerSuperset(tt.after, tt.before); got != tt.want {
				t.Errorf("IsMarkerSuperset(%q, %q) = %v, want %v", tt.after, tt.before, got, tt.want)
			}
		})
	}
}
