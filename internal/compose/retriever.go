// Package compose drafts the initial document section by section,
// pulling citation candidates from a retrieval collaborator and letting
// the ledger decide what may actually be cited.
package compose

import (
	"sort"
	"strings"

	"scribe/internal/citation"
	"scribe/internal/logging"
	"scribe/internal/planner"
)

// Retriever is the retrieval collaborator contract. Implementations are
// expected to exclude records already marked used. The semantic engine
// behind it is external; PoolRetriever is the in-process default.
type Retriever interface {
	Search(query string, topK int) []citation.Candidate
}

// similarityFloor is the minimum keyword-overlap score a candidate needs
// under strict matching. When nothing clears it, the single best unused
// candidate is returned anyway so drafting is never starved.
const similarityFloor = 0.05

// PoolRetriever ranks an in-memory literature pool by keyword overlap
// between the query and each record's title and abstract.
type PoolRetriever struct {
	pool []*citation.LiteratureRecord
}

// NewPoolRetriever wraps a literature pool.
func NewPoolRetriever(pool []*citation.LiteratureRecord) *PoolRetriever {
	return &PoolRetriever{pool: pool}
}

// Search returns up to topK unused candidates ordered by similarity.
func (r *PoolRetriever) Search(query string, topK int) []citation.Candidate {
	keywords := planner.Keywords(query)
	if len(keywords) == 0 || len(r.pool) == 0 {
		return nil
	}

	scored := make([]citation.Candidate, 0, len(r.pool))
	var bestUnused *citation.Candidate
	for _, rec := range r.pool {
		if rec.Used {
			continue
		}
		sim := similarity(keywords, rec)
		c := citation.Candidate{Record: rec, Similarity: sim}
		if bestUnused == nil || sim > bestUnused.Similarity {
			cc := c
			bestUnused = &cc
		}
		if sim < similarityFloor {
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	// Strict matching found nothing: fall back to the single best unused
	// record regardless of the floor.
	if len(scored) == 0 && bestUnused != nil {
		logging.ComposeWarn("no candidate cleared the similarity floor for %q, using fuzzy best", firstWords(query))
		return []citation.Candidate{*bestUnused}
	}
	return scored
}

// UnusedCount reports how many pool records remain citable.
func (r *PoolRetriever) UnusedCount() int {
	n := 0
	for _, rec := range r.pool {
		if !rec.Used {
			n++
		}
	}
	return n
}

func similarity(keywords []string, rec *citation.LiteratureRecord) float64 {
	text := strings.ToLower(rec.Title + " " + rec.Abstract)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func firstWords(s string) string {
	if len(s) <= 30 {
		return s
	}
	return strings.ToValidUTF8(s[:30], "") + "..."
}
