package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping stems note text, matches tag labels word by word and
// keeps tag ids exact for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true
	text.IncludeTermVectors = true
	doc.AddFieldMappingsAt("text", text)

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = simple.Name
	tags.Store = true
	doc.AddFieldMappingsAt("tags", tags)

	tagIDs := bleve.NewTextFieldMapping()
	tagIDs.Analyzer = keyword.Name
	tagIDs.Store = false
	doc.AddFieldMappingsAt("tag_ids", tagIDs)

	id := bleve.NewTextFieldMapping()
	id.Analyzer = keyword.Name
	id.Store = true
	doc.AddFieldMappingsAt("id", id)

	created := bleve.NewNumericFieldMapping()
	created.Store = true
	doc.AddFieldMappingsAt("created_at", created)

	indexMapping.DefaultMapping = doc
	return indexMapping
}
