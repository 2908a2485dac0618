package document

import (
	"errors"
	"regexp"
	"strings"

	"scribe/internal/logging"
)

// ErrNoStructure is reported when not a single heading is recognized.
// Callers must then treat the whole document as one opaque block: no
// patching is possible that round.
var ErrNoStructure = errors.New("document: no section structure detected")

// minParagraphLen is the shortest body block that counts as patchable
// prose. Anything shorter is kept in the tree but never offered to the
// patch executor.
const minParagraphLen = 30

// headingRule maps one surface syntax to a nesting level. The list is
// ordered: more specific rules come first, and the first match wins.
type headingRule struct {
	level int
	re    *regexp.Regexp
}

var headingRules = []headingRule{
	// Level 2 before level 1 so "###" is not eaten by "##" and "1.1" is
	// not eaten by "1.".
	{2, regexp.MustCompile(`^###\s+(.+)$`)},
	{2, regexp.MustCompile(`^（[一二三四五六七八九十]+）\s*(.+)$`)},
	{2, regexp.MustCompile(`^\(\d{1,2}\)\s+(.+)$`)},
	{2, regexp.MustCompile(`^\d{1,2}\.\d{1,2}\s+(.+)$`)},
	{1, regexp.MustCompile(`^##?\s+(.+)$`)},
	{1, regexp.MustCompile(`^[一二三四五六七八九十]+、\s*(.+)$`)},
	{1, regexp.MustCompile(`^\d{1,2}\.\s+(.+)$`)},
	{1, regexp.MustCompile(`^\d{1,2}、\s*(.+)$`)},
}

var (
	abstractPattern  = regexp.MustCompile(`^(摘要|Abstract)\s*[:：]?\s*`)
	referencePattern = regexp.MustCompile(`^(参考文献|References?)\s*[:：]?\s*$`)
)

// matchHeading returns the nesting level and title when line is a heading.
func matchHeading(line string) (int, string, bool) {
	for _, rule := range headingRules {
		if m := rule.re.FindStringSubmatch(line); m != nil {
			return rule.level, strings.TrimSpace(m[1]), true
		}
	}
	return 0, "", false
}

// matchesHeading reports whether text looks like a heading line.
func matchesHeading(text string) bool {
	_, _, ok := matchHeading(text)
	return ok
}

// Parse decomposes document text in a single linear scan. Non-heading
// blocks become paragraphs attached to the most recent heading. The
// abstract/keywords region and the reference list become non-mutable
// leaf nodes.
func Parse(text string) (*Tree, error) {
	timer := logging.StartTimer(logging.CategoryParser, "parse")
	defer timer.Stop()

	tree := &Tree{}
	blocks := splitBlocks(text)

	curH1 := -1
	curH2 := -1
	inReferences := false
	headings := 0

	attach := func(n Node) int {
		idx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, n)
		switch {
		case n.Parent >= 0:
			tree.Nodes[n.Parent].Children = append(tree.Nodes[n.Parent].Children, idx)
		default:
			tree.Order = append(tree.Order, idx)
		}
		return idx
	}

	for _, block := range blocks {
		firstLine := strings.SplitN(block, "\n", 2)[0]

		// Everything after the reference heading belongs to the
		// reference-list leaf.
		if inReferences {
			last := len(tree.Nodes) - 1
			if last >= 0 && tree.Nodes[last].Kind == KindReferenceList {
				if tree.Nodes[last].Body == "" {
					tree.Nodes[last].Body = block
				} else {
					tree.Nodes[last].Body += "\n\n" + block
				}
				continue
			}
		}

		if referencePattern.MatchString(strings.TrimSpace(firstLine)) {
			body := ""
			if rest := strings.SplitN(block, "\n", 2); len(rest) == 2 {
				body = strings.TrimSpace(rest[1])
			}
			attach(Node{Kind: KindReferenceList, Title: strings.TrimSpace(firstLine), Body: body, Parent: -1})
			inReferences = true
			curH1, curH2 = -1, -1
			continue
		}

		if abstractPattern.MatchString(strings.TrimSpace(firstLine)) && curH1 < 0 {
			attach(Node{Kind: KindAbstract, Title: "abstract", Body: block, Parent: -1})
			continue
		}

		if level, title, ok := matchHeading(firstLine); ok {
			switch level {
			case 1:
				curH1 = attach(Node{Kind: KindHeading1, Title: title, Raw: firstLine, Parent: -1})
				curH2 = -1
			case 2:
				if curH1 < 0 {
					// A level-2 heading with no open section is promoted
					// so its paragraphs are not orphaned.
					curH1 = attach(Node{Kind: KindHeading1, Title: title, Raw: firstLine, Parent: -1})
					curH2 = -1
				} else {
					curH2 = attach(Node{Kind: KindHeading2, Title: title, Raw: firstLine, Parent: curH1})
				}
			}
			headings++

			// A heading block may carry body lines below the heading line.
			if rest := strings.SplitN(block, "\n", 2); len(rest) == 2 && strings.TrimSpace(rest[1]) != "" {
				parent := curH2
				if parent < 0 {
					parent = curH1
				}
				attach(Node{Kind: KindParagraph, Body: strings.TrimSpace(rest[1]), Parent: parent})
			}
			continue
		}

		parent := curH2
		if parent < 0 {
			parent = curH1
		}
		attach(Node{Kind: KindParagraph, Body: block, Parent: parent})
	}

	if headings == 0 {
		logging.ParserWarn("no headings recognized in %d blocks", len(blocks))
		return nil, ErrNoStructure
	}

	logging.Parser("parsed %d nodes (%d headings, %d patchable paragraphs)",
		len(tree.Nodes), headings, len(tree.Paragraphs()))
	return tree, nil
}

// splitBlocks cuts text into blank-line separated blocks, with heading
// lines always forced into their own scan unit so a heading glued to its
// paragraph still parses.
func splitBlocks(text string) []string {
	var blocks []string
	for _, raw := range strings.Split(text, "\n\n") {
		block := strings.TrimSpace(raw)
		if block == "" {
			continue
		}

		// Heading line followed directly by prose inside one block: keep
		// them together, Parse splits on the first newline.
		blocks = append(blocks, block)
	}
	return blocks
}
