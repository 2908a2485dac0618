// Package citation implements the citation ledger: the authoritative
// bookkeeping for which literature record owns which in-text citation
// number. Numbers are issued strictly ascending from 1 and are never
// reused or reassigned within one document.
package citation

// LiteratureRecord is one entry in the literature pool. All fields
// except Used are immutable once the pool is built.
type LiteratureRecord struct {
	ID           string   `yaml:"id" json:"id"`
	Authors      []string `yaml:"authors" json:"authors"`
	Title        string   `yaml:"title" json:"title"`
	Year         int      `yaml:"year" json:"year"`
	Abstract     string   `yaml:"abstract" json:"abstract"`
	FullCitation string   `yaml:"full_citation" json:"full_citation"`
	Used         bool     `yaml:"-" json:"-"`
}

// FirstAuthor returns the lead author, or "" when unknown.
func (r *LiteratureRecord) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// Candidate pairs a literature record with its retrieval similarity.
type Candidate struct {
	Record     *LiteratureRecord
	Similarity float64
}
