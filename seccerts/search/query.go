package search

import (
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// Query is one search request. Zero values mean "no constraint"; Page is
// 1-based and defaults to the first page; Sort defaults to relevance.
type Query struct {
	Text     string
	Scheme   string
	Status   string
	Category string
	EAL      string
	Page     int
	Sort     string
}

// Hit is one result row.
type Hit struct {
	Digest   string  `json:"digest"`
	Scheme   string  `json:"scheme"`
	SchemeID string  `json:"scheme_id"`
	Name     string  `json:"name"`
	Vendor   string  `json:"vendor,omitempty"`
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
}

// FacetCount is one facet bucket.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Result is one page of hits plus the facet breakdown over the full match
// set.
type Result struct {
	Total  uint64                  `json:"total"`
	Page   int                     `json:"page"`
	Pages  int                     `json:"pages"`
	Hits   []Hit                   `json:"hits"`
	Facets map[string][]FacetCount `json:"facets,omitempty"`
}

var facetFields = []string{"status", "category", "scheme", "eal"}

func (q *Query) validate() error {
	if q.Page < 0 {
		return &ErrBadQuery{Field: "page", Value: "negative"}
	}
	if q.Sort != "" {
		if _, ok := sortOptions[q.Sort]; !ok {
			options := make([]string, 0, len(sortOptions))
			for name := range sortOptions {
				options = append(options, name)
			}
			sort.Strings(options)
			return &ErrBadQuery{Field: "sort", Value: q.Sort, Options: options}
		}
	}
	if q.Status != "" && certificate.ParseStatus(q.Status) == "" {
		return &ErrBadQuery{
			Field:   "status",
			Value:   q.Status,
			Options: []string{string(certificate.StatusActive), string(certificate.StatusArchived)},
		}
	}
	if q.Scheme != "" && certificate.ParseScheme(q.Scheme) == "" {
		options := make([]string, 0, len(certificate.AllSchemes))
		for _, s := range certificate.AllSchemes {
			options = append(options, string(s))
		}
		return &ErrBadQuery{Field: "scheme", Value: q.Scheme, Options: options}
	}
	return nil
}

// Search runs one query against the index.
func (i *Index) Search(q Query) (*Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	page := q.Page
	if page == 0 {
		page = 1
	}
	sortMode := q.Sort
	if sortMode == "" {
		sortMode = "relevance"
	}

	boolean := bleve.NewBooleanQuery()
	if q.Text != "" {
		boolean.AddMust(bleve.NewMatchQuery(q.Text))
	} else {
		boolean.AddMust(bleve.NewMatchAllQuery())
	}
	addTermFilter(boolean, "scheme", q.Scheme)
	addTermFilter(boolean, "status", q.Status)
	addTermFilter(boolean, "category", q.Category)
	addTermFilter(boolean, "eal", q.EAL)

	req := bleve.NewSearchRequestOptions(boolean, i.pageSize, (page-1)*i.pageSize, false)
	req.Fields = []string{"digest", "scheme", "scheme_id", "name", "vendor", "status"}
	req.SortBy(sortOptions[sortMode])
	for _, field := range facetFields {
		req.AddFacet(field, bleve.NewFacetRequest(field, 20))
	}

	raw, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Total: raw.Total,
		Page:  page,
		Pages: int((raw.Total + uint64(i.pageSize) - 1) / uint64(i.pageSize)),
	}
	if result.Pages > 0 && page > result.Pages {
		return nil, &ErrBadQuery{Field: "page", Value: "out of range"}
	}

	for _, hit := range raw.Hits {
		result.Hits = append(result.Hits, Hit{
			Digest:   stringField(hit.Fields, "digest"),
			Scheme:   stringField(hit.Fields, "scheme"),
			SchemeID: stringField(hit.Fields, "scheme_id"),
			Name:     stringField(hit.Fields, "name"),
			Vendor:   stringField(hit.Fields, "vendor"),
			Status:   stringField(hit.Fields, "status"),
			Score:    hit.Score,
		})
	}

	if len(raw.Facets) > 0 {
		result.Facets = make(map[string][]FacetCount)
		for name, facet := range raw.Facets {
			for _, term := range facet.Terms.Terms() {
				result.Facets[name] = append(result.Facets[name], FacetCount{
					Value: term.Term,
					Count: term.Count,
				})
			}
		}
	}
	return result, nil
}

func addTermFilter(boolean *query.BooleanQuery, field, value string) {
	if value == "" {
		return
	}
	term := bleve.NewTermQuery(value)
	term.SetField(field)
	boolean.AddMust(term)
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
