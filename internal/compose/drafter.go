package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"scribe/internal/citation"
	"scribe/internal/logging"
	"scribe/internal/provider"
)

const (
	sectionMaxTokens  = 2048
	abstractMaxTokens = 512
	defaultTopK       = 5
)

// Outline is the skeleton the drafter walks. Sections appear in order;
// each may carry subsections.
type Outline struct {
	Title    string           `yaml:"title" json:"title"`
	Sections []OutlineSection `yaml:"sections" json:"sections"`
}

// OutlineSection is one top-level heading. Key names the quota region the
// section draws from: citation.SectionIntroduction,
// citation.SectionConclusion, or a chapter name from the quota plan.
// An empty Key falls back to the title.
type OutlineSection struct {
	Title       string   `yaml:"title" json:"title"`
	Key         string   `yaml:"key,omitempty" json:"key,omitempty"`
	Subsections []string `yaml:"subsections,omitempty" json:"subsections,omitempty"`
}

// QuotaKey names the quota region this section draws from.
func (s OutlineSection) QuotaKey() string {
	if s.Key != "" {
		return s.Key
	}
	return s.Title
}

// Drafter generates the initial document from an outline, routing every
// citation decision through the ledger so the draft starts inside quota.
type Drafter struct {
	router    *provider.Router
	retriever Retriever
	ledger    *citation.Ledger
	topK      int
}

// NewDrafter wires a drafter. topK <= 0 selects the default.
func NewDrafter(router *provider.Router, retriever Retriever, ledger *citation.Ledger, topK int) *Drafter {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Drafter{router: router, retriever: retriever, ledger: ledger, topK: topK}
}

// anyMarkerPattern matches every [N] marker; the abstract carries none.
var anyMarkerPattern = regexp.MustCompile(`\[\d+\]`)

// Draft walks the outline, generates each body, then writes the abstract
// last from what the sections actually said and appends the reference
// list. Only generation failure aborts; an empty retrieval result just
// produces an uncited passage.
func (d *Drafter) Draft(ctx context.Context, outline *Outline) (string, error) {
	if len(outline.Sections) == 0 {
		return "", fmt.Errorf("outline has no sections")
	}

	var body strings.Builder
	var summaries []string

	for _, section := range outline.Sections {
		body.WriteString("## " + section.Title + "\n\n")

		subs := section.Subsections
		if len(subs) == 0 {
			// Section without subsections drafts as a single unit.
			subs = []string{""}
		}
		for _, sub := range subs {
			text, err := d.draftUnit(ctx, outline.Title, section, sub)
			if err != nil {
				return "", err
			}
			if sub != "" {
				body.WriteString("### " + sub + "\n\n")
			}
			body.WriteString(text + "\n\n")
			summaries = append(summaries, summarize(section.Title, sub, text))
		}
	}

	abstract, err := d.draftAbstract(ctx, outline.Title, summaries)
	if err != nil {
		return "", err
	}

	var doc strings.Builder
	doc.WriteString("Abstract: " + abstract + "\n\n")
	doc.WriteString(body.String())
	if refs := d.ledger.RenderReferenceList(); refs != "" {
		doc.WriteString("References\n\n" + refs + "\n")
	}

	logging.Compose("drafted %d sections with %d citations", len(outline.Sections), d.ledger.AssignedCount())
	return doc.String(), nil
}

// draftUnit generates one section or subsection body. Citations are
// assigned before generation so the prompt can name the exact markers the
// text is allowed to carry; anything else the generator invents is
// stripped.
func (d *Drafter) draftUnit(ctx context.Context, docTitle string, section OutlineSection, sub string) (string, error) {
	d.ledger.SetCurrentSection(section.QuotaKey(), sub)

	query := strings.TrimSpace(docTitle + " " + section.Title + " " + sub)
	candidates := d.retriever.Search(query, d.topK)
	nums := d.ledger.Assign(candidates, query)

	heading := section.Title
	if sub != "" {
		heading = section.Title + " / " + sub
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write the body of the section %q for a document titled %q.\n", heading, docTitle)
	prompt.WriteString("Write flowing prose, no headings, no bullet lists.\n")
	if len(nums) > 0 {
		fmt.Fprintf(&prompt, "Cite sources only with these markers, placed where relevant: %s.\n", renderMarkers(nums))
		for _, n := range nums {
			if rec, ok := d.ledger.RecordFor(n); ok {
				fmt.Fprintf(&prompt, "[%d] is: %s\n", n, rec.Title)
			}
		}
	} else {
		prompt.WriteString("Do not include any citation markers.\n")
	}

	out, err := d.router.Generate(ctx, provider.RoleDraft, prompt.String(), "", sectionMaxTokens)
	if err != nil {
		return "", fmt.Errorf("drafting %q failed: %w", heading, err)
	}

	text := d.ledger.StripUnknownMarkers(strings.TrimSpace(out))
	logging.ComposeDebug("drafted %q (%d bytes, markers %v)", heading, len(text), nums)
	return text, nil
}

// draftAbstract summarizes the finished sections. Abstracts never carry
// citation markers.
func (d *Drafter) draftAbstract(ctx context.Context, docTitle string, summaries []string) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write a one-paragraph abstract for the document titled %q.\n", docTitle)
	prompt.WriteString("Base it only on the section summaries below. No citation markers.\n\n")
	prompt.WriteString(strings.Join(summaries, "\n"))

	out, err := d.router.Generate(ctx, provider.RoleSynthesis, prompt.String(), "", abstractMaxTokens)
	if err != nil {
		return "", fmt.Errorf("drafting abstract failed: %w", err)
	}
	return anyMarkerPattern.ReplaceAllString(strings.TrimSpace(out), ""), nil
}

func renderMarkers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("[%d]", n)
	}
	return strings.Join(parts, " ")
}

// summarize condenses a drafted unit into one line for the abstract prompt.
func summarize(section, sub, text string) string {
	label := section
	if sub != "" {
		label += " / " + sub
	}
	excerpt := text
	if len(excerpt) > 200 {
		excerpt = strings.ToValidUTF8(excerpt[:200], "")
	}
	return label + ": " + excerpt
}
