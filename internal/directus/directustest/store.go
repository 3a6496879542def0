// Package directustest provides an in-memory directus.Source for tests.
package directustest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"maturity_backend/internal/directus"
)

type Store struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	singletons  map[string]map[string]any
	failing     map[string]bool
	calls       map[string]int
	tokens      []string
}

func New() *Store {
	return &Store{
		collections: map[string][]map[string]any{},
		singletons:  map[string]map[string]any{},
		failing:     map[string]bool{},
		calls:       map[string]int{},
	}
}

// Add 追加记录，记录先经过 JSON 往返以统一数值类型
func (s *Store) Add(collection string, records ...any) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.collections[collection] = append(s.collections[collection], normalize(r))
	}
	return s
}

func (s *Store) SetSingleton(collection string, record any) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singletons[collection] = normalize(record)
	return s
}

// Fail 让该集合的所有请求返回 FetchError
func (s *Store) Fail(collection string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[collection] = true
	return s
}

func (s *Store) Calls(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[collection]
}

// PreviewTokens 返回各次请求携带的预览令牌（服务模式记为空串）
func (s *Store) PreviewTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *Store) record(collection string, cred directus.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[collection]++
	s.tokens = append(s.tokens, cred.PreviewToken())
	if s.failing[collection] {
		return &directus.FetchError{Collection: collection, Status: 503, Err: fmt.Errorf("unavailable")}
	}
	return nil
}

func (s *Store) Items(ctx context.Context, collection string, q directus.Query, cred directus.Credential) (json.RawMessage, error) {
	if err := s.record(collection, cred); err != nil {
		return nil, err
	}

	s.mu.Lock()
	records := append([]map[string]any(nil), s.collections[collection]...)
	s.mu.Unlock()

	var filter map[string]any
	if len(q.Filter) > 0 {
		filter = normalize(q.Filter)
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	sortRecords(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return json.Marshal(out)
}

func (s *Store) Singleton(ctx context.Context, collection string, q directus.Query, cred directus.Credential) (json.RawMessage, error) {
	if err := s.record(collection, cred); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.singletons[collection]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(item)
}

func normalize(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}

func matches(record map[string]any, filter map[string]any) bool {
	for key, cond := range filter {
		switch key {
		case "_and":
			list, _ := cond.([]any)
			for _, sub := range list {
				m, _ := sub.(map[string]any)
				if !matches(record, m) {
					return false
				}
			}
		case "_or":
			list, _ := cond.([]any)
			ok := false
			for _, sub := range list {
				m, _ := sub.(map[string]any)
				if matches(record, m) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		default:
			ops, _ := cond.(map[string]any)
			if !matchField(record[key], ops) {
				return false
			}
		}
	}
	return true
}

func matchField(value any, ops map[string]any) bool {
	for op, want := range ops {
		switch op {
		case "_eq":
			if !equal(value, want) {
				return false
			}
		case "_neq":
			if equal(value, want) {
				return false
			}
		case "_lte":
			a, ok1 := value.(float64)
			b, ok2 := want.(float64)
			if !ok1 || !ok2 || a > b {
				return false
			}
		case "_gte":
			a, ok1 := value.(float64)
			b, ok2 := want.(float64)
			if !ok1 || !ok2 || a < b {
				return false
			}
		case "_in":
			list, _ := want.([]any)
			found := false
			for _, w := range list {
				if equal(value, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func sortRecords(records []map[string]any, fields []string) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, f := range fields {
			desc := strings.HasPrefix(f, "-")
			f = strings.TrimPrefix(f, "-")
			c := compare(records[i][f], records[j][f])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b any) int {
	fa, okA := a.(float64)
	fb, okB := b.(float64)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
