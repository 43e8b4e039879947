package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type FilterParams struct {
	Query    string
	Types    []string
	Statuses []string
	District string
	UserID   string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	MinRooms *int
	SortBy   string
	Limit    int64
	Offset   int64
}

// sortOptions maps the dashboard sort keys onto index sort rules
var sortOptions = map[string]string{
	"price-asc":  "price:asc",
	"price-desc": "price:desc",
	"area-asc":   "area:asc",
	"area-desc":  "area:desc",
	"oldest":     "created_at:asc",
	"newest":     "created_at:desc",
}

// quote escapes a string literal for a filter expression
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

func anyOf(field string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s = %s", field, quote(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " OR "))
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// buildFilters turns params into filter clauses joined with AND by the caller
func buildFilters(params FilterParams) []string {
	var filters []string

	if len(params.Types) > 0 {
		filters = append(filters, anyOf("type", params.Types))
	}
	if len(params.Statuses) > 0 {
		filters = append(filters, anyOf("status", params.Statuses))
	}
	if params.District != "" {
		filters = append(filters, fmt.Sprintf("district = %s", quote(params.District)))
	}
	if params.UserID != "" {
		filters = append(filters, fmt.Sprintf("user_id = %s", quote(params.UserID)))
	}

	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %s", number(*params.MinPrice)))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %s", number(*params.MaxPrice)))
	}
	if params.MinArea != nil {
		filters = append(filters, fmt.Sprintf("area >= %s", number(*params.MinArea)))
	}
	if params.MaxArea != nil {
		filters = append(filters, fmt.Sprintf("area <= %s", number(*params.MaxArea)))
	}
	if params.MinRooms != nil {
		filters = append(filters, fmt.Sprintf("rooms >= %d", *params.MinRooms))
	}

	return filters
}

// buildSort returns the sort rules for a dashboard sort key, newest first by default
func buildSort(sortBy string) []string {
	if rule, ok := sortOptions[sortBy]; ok {
		return []string{rule}
	}
	return []string{"created_at:desc"}
}

// FilterSearch runs a dashboard query through AdvancedSearch
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	return s.AdvancedSearch(SearchRequest{
		Query:  params.Query,
		Limit:  params.Limit,
		Offset: params.Offset,
		Filter: buildFilters(params),
		Sort:   buildSort(params.SortBy),
	})
}

// decodeHits converts raw hits to documents, skipping any that do not decode
func decodeHits(hits []interface{}) []Document {
	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		// Convert hit to JSON then to Document struct
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}

		var doc Document
		if err := json.Unmarshal(hitJSON, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
