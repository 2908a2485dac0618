package citation

import (
	"math"

	"scribe/internal/logging"
)

// Well-known section names used by quota planning.
const (
	SectionIntroduction = "introduction"
	SectionConclusion   = "conclusion"
)

// QuotaPlan fixes the maximum citation count per logical region of the
// document. Fractional allocations are ceil-rounded; when rounding pushes
// the plan past the global total by more than one per chapter, the excess
// is trimmed from the chapters (never from the introduction).
type QuotaPlan struct {
	total    int
	sections map[string]int
	chapters []string
	subShare float64
}

// NewQuotaPlan allocates the global total across the introduction, the
// named body chapters, and the conclusion (which always gets zero).
// subShare is the fraction of a section's quota each subsection may use.
func NewQuotaPlan(total int, introFraction, chapterFraction, subShare float64, chapters []string) *QuotaPlan {
	p := &QuotaPlan{
		total:    total,
		sections: make(map[string]int),
		chapters: chapters,
		subShare: subShare,
	}

	p.sections[SectionIntroduction] = int(math.Ceil(float64(total) * introFraction))
	for _, ch := range chapters {
		p.sections[ch] = int(math.Ceil(float64(total) * chapterFraction))
	}
	p.sections[SectionConclusion] = 0

	// Ceil-rounding may overshoot the total. One over per chapter is
	// tolerated; beyond that, trim chapters round-robin.
	tolerance := len(chapters)
	for p.sum() > total+tolerance {
		trimmed := false
		for _, ch := range chapters {
			if p.sum() <= total+tolerance {
				break
			}
			if p.sections[ch] > 0 {
				p.sections[ch]--
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}

	logging.LedgerDebug("quota plan: total=%d sections=%v", total, p.sections)
	return p
}

func (p *QuotaPlan) sum() int {
	s := 0
	for _, q := range p.sections {
		s += q
	}
	return s
}

// Total returns the global citation cap.
func (p *QuotaPlan) Total() int {
	return p.total
}

// SectionQuota returns the cap for a named section. Unknown sections get
// zero so that text outside the planned outline never mints citations.
func (p *QuotaPlan) SectionQuota(section string) int {
	return p.sections[section]
}

// SubsectionQuota derives the per-subsection cap from the parent section.
// A section with a nonzero quota always grants its subsections at least 1.
func (p *QuotaPlan) SubsectionQuota(section string) int {
	parent := p.sections[section]
	if parent == 0 {
		return 0
	}
	q := int(math.Ceil(float64(parent) * p.subShare))
	if q < 1 {
		q = 1
	}
	return q
}
