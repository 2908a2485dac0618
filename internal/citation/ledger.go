package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"scribe/internal/logging"
)

// Ledger assigns and reconciles citation numbers for one document pass.
// It is created per document and mutated only inside the active round,
// so it carries no locking.
type Ledger struct {
	plan *QuotaPlan

	assigned map[string]int            // literature ID -> citation number
	byNumber map[int]*LiteratureRecord // citation number -> record
	next     int                       // next number to issue

	curSection    string
	curSubsection string
	sectionCounts map[string]int
	subCount      int
	subQuota      int

	usedAuthors map[string]bool
	usedYears   map[int]bool
}

// SyncReport is the result of diffing in-text markers against the ledger.
type SyncReport struct {
	Matched         []int // markers with exactly one ledger entry
	MissingInLedger []int // markers in text the ledger never issued
	UnusedInText    []int // issued numbers absent from the text
}

// NewLedger creates an empty ledger governed by the given quota plan.
func NewLedger(plan *QuotaPlan) *Ledger {
	return &Ledger{
		plan:          plan,
		assigned:      make(map[string]int),
		byNumber:      make(map[int]*LiteratureRecord),
		next:          1,
		sectionCounts: make(map[string]int),
		usedAuthors:   make(map[string]bool),
		usedYears:     make(map[int]bool),
	}
}

// SetCurrentSection tells the ledger which region subsequent Assign calls
// write into. The subsection counter resets whenever the subsection
// changes, so each subsection gets its own slice of the section budget.
func (l *Ledger) SetCurrentSection(section, subsection string) {
	if section != l.curSection || subsection != l.curSubsection {
		l.subCount = 0
		l.subQuota = l.plan.SubsectionQuota(section)
	}
	l.curSection = section
	l.curSubsection = subsection
}

// Assign selects at most one new citation from candidates, gated three
// ways: section quota remaining, subsection quota remaining, and global
// quota remaining. When any gate is closed it falls back to reusing an
// already-issued number from the candidates (never minting a new one).
// Returns the citation numbers the caller may place in text, or nil.
func (l *Ledger) Assign(candidates []Candidate, query string) []int {
	if len(candidates) == 0 {
		logging.LedgerWarn("assign called with empty candidate set (query=%q)", truncate(query, 40))
		return nil
	}

	globalLeft := l.plan.Total() - len(l.assigned)
	sectionLeft := l.plan.SectionQuota(l.curSection) - l.sectionCounts[l.curSection]
	subLeft := l.subQuota - l.subCount

	if globalLeft <= 0 || sectionLeft <= 0 || subLeft <= 0 {
		logging.LedgerDebug("quota gate closed (global=%d section=%d sub=%d), trying reuse",
			globalLeft, sectionLeft, subLeft)
		return l.reuse(candidates)
	}

	picked := l.selectDiverse(candidates, 1)
	if len(picked) == 0 {
		// Every candidate already carries a number; reuse the best one.
		return l.reuse(candidates)
	}

	rec := picked[0].Record
	num := l.next
	l.next++
	l.assigned[rec.ID] = num
	l.byNumber[num] = rec
	rec.Used = true

	l.sectionCounts[l.curSection]++
	l.subCount++
	if fa := rec.FirstAuthor(); fa != "" {
		l.usedAuthors[fa] = true
	}
	l.usedYears[rec.Year] = true

	logging.Ledger("assigned [%d] to %q (section=%s, %d/%d global)",
		num, truncate(rec.Title, 50), l.curSection, len(l.assigned), l.plan.Total())
	return []int{num}
}

// reuse returns the existing number of the most similar already-cited
// candidate, if any. It never creates a new assignment.
func (l *Ledger) reuse(candidates []Candidate) []int {
	best := -1
	bestSim := -1.0
	for _, c := range candidates {
		num, ok := l.assigned[c.Record.ID]
		if !ok {
			continue
		}
		if c.Similarity > bestSim {
			bestSim = c.Similarity
			best = num
		}
	}
	if best < 0 {
		logging.LedgerDebug("no reusable citation among %d candidates", len(candidates))
		return nil
	}
	return []int{best}
}

// selectDiverse picks up to target candidates using two passes:
// pass 1 greedily takes candidates whose first author or year has not
// been cited yet; pass 2 fills any remainder by similarity. Candidates
// whose record already holds a citation number are never selected.
func (l *Ledger) selectDiverse(candidates []Candidate, target int) []Candidate {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, taken := l.assigned[c.Record.ID]; taken {
			continue
		}
		eligible = append(eligible, c)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Similarity > eligible[j].Similarity
	})

	picked := make([]Candidate, 0, target)
	taken := make(map[string]bool)

	seenAuthors := make(map[string]bool, len(l.usedAuthors))
	for a := range l.usedAuthors {
		seenAuthors[a] = true
	}
	seenYears := make(map[int]bool, len(l.usedYears))
	for y := range l.usedYears {
		seenYears[y] = true
	}

	// Pass 1: diversity.
	for _, c := range eligible {
		if len(picked) >= target {
			break
		}
		fa := c.Record.FirstAuthor()
		if (fa != "" && !seenAuthors[fa]) || !seenYears[c.Record.Year] {
			picked = append(picked, c)
			taken[c.Record.ID] = true
			if fa != "" {
				seenAuthors[fa] = true
			}
			seenYears[c.Record.Year] = true
		}
	}

	// Pass 2: fill by similarity.
	for _, c := range eligible {
		if len(picked) >= target {
			break
		}
		if !taken[c.Record.ID] {
			picked = append(picked, c)
			taken[c.Record.ID] = true
		}
	}

	return picked
}

// SyncWithText diffs the [N] markers in text against the ledger. Markers
// the ledger never issued are logged as anomalies and left untouched;
// repairing them here would fabricate provenance. Issued numbers missing
// from the text are reported but kept, since a later round may
// reintroduce them.
func (l *Ledger) SyncWithText(text string) SyncReport {
	report := SyncReport{}
	inText := make(map[int]bool)

	for _, n := range ExtractMarkers(text) {
		inText[n] = true
		if _, ok := l.byNumber[n]; ok {
			report.Matched = append(report.Matched, n)
		} else {
			report.MissingInLedger = append(report.MissingInLedger, n)
		}
	}
	for n := range l.byNumber {
		if !inText[n] {
			report.UnusedInText = append(report.UnusedInText, n)
		}
	}
	sort.Ints(report.Matched)
	sort.Ints(report.MissingInLedger)
	sort.Ints(report.UnusedInText)

	if len(report.MissingInLedger) > 0 {
		logging.LedgerWarn("markers with no ledger entry (left untouched): %v", report.MissingInLedger)
	}
	if len(report.UnusedInText) > 0 {
		logging.LedgerDebug("issued citations unused in text: %v", report.UnusedInText)
	}
	return report
}

// leadingNumberPattern strips numbering a source may already carry, e.g.
// "[3] ", "(3) ", "3. " at the start of a stored citation string.
var leadingNumberPattern = regexp.MustCompile(`^\s*(\[\d+\]|\(\d+\)|\d+[.、])\s*`)

// RenderReferenceList formats one entry per issued citation, ascending by
// number, blank-line separated: "[N] <full citation>".
func (l *Ledger) RenderReferenceList() string {
	nums := make([]int, 0, len(l.byNumber))
	for n := range l.byNumber {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	entries := make([]string, 0, len(nums))
	for _, n := range nums {
		cite := leadingNumberPattern.ReplaceAllString(l.byNumber[n].FullCitation, "")
		entries = append(entries, fmt.Sprintf("[%d] %s", n, cite))
	}
	return strings.Join(entries, "\n\n")
}

// StripUnknownMarkers removes [N] markers the ledger never issued. This
// runs only on freshly generated text before it enters the document,
// never on committed text (committed anomalies are reported by
// SyncWithText instead).
func (l *Ledger) StripUnknownMarkers(text string) string {
	return markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		nums := ExtractMarkers(m)
		if len(nums) == 1 {
			if _, ok := l.byNumber[nums[0]]; ok {
				return m
			}
		}
		logging.LedgerDebug("stripped fabricated marker %s from generated text", m)
		return ""
	})
}

// AssignedCount returns how many citation numbers have been issued.
func (l *Ledger) AssignedCount() int {
	return len(l.assigned)
}

// SectionCount returns how many citations a section has committed.
func (l *Ledger) SectionCount(section string) int {
	return l.sectionCounts[section]
}

// NumberFor returns the citation number issued to a literature ID.
func (l *Ledger) NumberFor(id string) (int, bool) {
	n, ok := l.assigned[id]
	return n, ok
}

// RecordFor returns the literature record behind a citation number.
func (l *Ledger) RecordFor(num int) (*LiteratureRecord, bool) {
	r, ok := l.byNumber[num]
	return r, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Byte slicing may cut a multi-byte rune in half; drop the fragment.
	return strings.ToValidUTF8(s[:n], "") + "..."
}
