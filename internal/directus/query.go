package directus

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Filter Directus 过滤规则，如 {"level_id": {"_eq": 2}}
type Filter map[string]any

func Eq(v any) map[string]any  { return map[string]any{"_eq": v} }
func Lte(v any) map[string]any { return map[string]any{"_lte": v} }
func Gte(v any) map[string]any { return map[string]any{"_gte": v} }
func In(v any) map[string]any  { return map[string]any{"_in": v} }

// And 合并多个条件
func And(filters ...Filter) Filter {
	list := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			list = append(list, f)
		}
	}
	return Filter{"_and": list}
}

type Query struct {
	Filter Filter
	Sort   []string
	// Limit 为0时取全部
	Limit  int
	Fields []string
}

func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Filter) > 0 {
		raw, err := json.Marshal(q.Filter)
		if err == nil {
			v.Set("filter", string(raw))
		}
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	} else {
		v.Set("limit", "-1")
	}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	return v
}
