// internal/services/catalog/search-programs/query.go
package searchprograms

import "strings"

// BuildQuery returns the search body for input: a multi_match over the
// program text fields, or match_all, with an optional category filter.
func BuildQuery(input *Input) map[string]interface{} {
	must := []interface{}{}
	if q := strings.TrimSpace(input.Query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"name^3", "description^2", "courses.title", "category"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if c := strings.TrimSpace(input.Category); c != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"category": c}},
		}
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
	if strings.TrimSpace(input.Query) == "" {
		query["sort"] = []map[string]interface{}{{"name.keyword": "asc"}}
	}
	return query
}
