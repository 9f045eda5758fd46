package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/listenupapp/tagnotes/internal/domain"
)

// DefaultLimit caps result lists when Params.Limit is unset.
const DefaultLimit = 50

// Params is a note search.
type Params struct {
	Query string
	// TagID restricts hits to notes carrying the tag.
	TagID domain.ID
	Limit int
}

// Hit is one matching note.
type Hit struct {
	ID        domain.ID `json:"id"`
	Score     float64   `json:"score"`
	Highlight string    `json:"highlight,omitempty"`
}

// Result is a page of hits, best first.
type Result struct {
	Query string `json:"query"`
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

// Search runs params against the index. An empty query with no tag filter
// matches every note, newest first.
func (x *NoteIndex) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, 0, false)
	req.SortBy([]string{"-_score", "-created_at"})
	if strings.TrimSpace(params.Query) != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("text")
	}

	x.mu.RLock()
	res, err := x.index.SearchInContext(ctx, req)
	x.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}

	out := &Result{Query: params.Query, Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: domain.ID(h.ID), Score: h.Score}
		if frags := h.Fragments["text"]; len(frags) > 0 {
			hit.Highlight = frags[0]
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func buildQuery(params Params) query.Query {
	var must []query.Query

	q := strings.TrimSpace(params.Query)
	if q != "" {
		text := bleve.NewMatchQuery(q)
		text.SetField("text")
		text.SetBoost(3.0)

		tags := bleve.NewMatchQuery(q)
		tags.SetField("tags")
		tags.SetBoost(2.0)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetField("text")
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.8)

		either := []query.Query{text, tags, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("text")
			prefix.SetBoost(0.5)
			either = append(either, prefix)
		}
		must = append(must, bleve.NewDisjunctionQuery(either...))
	}

	if !params.TagID.IsZero() {
		tag := bleve.NewTermQuery(params.TagID.String())
		tag.SetField("tag_ids")
		must = append(must, tag)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}
