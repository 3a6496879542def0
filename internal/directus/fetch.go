package directus

import (
	"bytes"
	"context"
	"encoding/json"

	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// List 获取集合并解码，返回 *FetchError 以便调用方区分"确认为空"与"获取失败"
func List[T any](ctx context.Context, src Source, collection string, q Query, cred Credential) ([]T, error) {
	raw, err := src.Items(ctx, collection, q, cred)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if isNull(raw) {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &FetchError{Collection: collection, Err: err}
	}
	return items, nil
}

func One[T any](ctx context.Context, src Source, collection string, q Query, cred Credential) (*T, error) {
	raw, err := src.Singleton(ctx, collection, q, cred)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &FetchError{Collection: collection, Err: err}
	}
	return &item, nil
}

// FetchList 任何失败都返回空列表，失败只记录日志
func FetchList[T any](ctx context.Context, src Source, collection string, q Query, cred Credential) []T {
	items, err := List[T](ctx, src, collection, q, cred)
	if err != nil {
		observe(collection, "error")
		logger.Log.Warn("content fetch failed",
			zap.String("collection", collection),
			zap.Bool("preview", cred.IsPreview()),
			zap.Error(err))
		return []T{}
	}
	if len(items) == 0 {
		observe(collection, "empty")
		logger.Log.Debug("content fetch returned no items", zap.String("collection", collection))
		return items
	}
	observe(collection, "ok")
	return items
}

// FetchSingleton 任何失败都返回 nil
func FetchSingleton[T any](ctx context.Context, src Source, collection string, cred Credential) *T {
	item, err := One[T](ctx, src, collection, Query{}, cred)
	if err != nil {
		observe(collection, "error")
		logger.Log.Warn("content fetch failed",
			zap.String("collection", collection),
			zap.Bool("preview", cred.IsPreview()),
			zap.Error(err))
		return nil
	}
	if item == nil {
		observe(collection, "empty")
		return nil
	}
	observe(collection, "ok")
	return item
}

// FetchFirst 取首条记录，没有时返回 nil
func FetchFirst[T any](ctx context.Context, src Source, collection string, q Query, cred Credential) *T {
	q.Limit = 1
	items := FetchList[T](ctx, src, collection, q, cred)
	if len(items) == 0 {
		return nil
	}
	return &items[0]
}

type Extra struct {
	Collection string
	Sort       []string
}

// FetchSectionWithExtras 获取 singleton 区块及其关联列表，全部使用同一凭证。
// 结果形如 {"section": {...}, "<name>": [...]}，单个 extra 失败只会让该项为空列表。
func FetchSectionWithExtras(ctx context.Context, src Source, section string, extras map[string]Extra, cred Credential) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(extras)+1)
	results := make([]json.RawMessage, len(extras))
	names := make([]string, 0, len(extras))
	for name := range extras {
		names = append(names, name)
	}

	var sectionRaw json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item := FetchSingleton[json.RawMessage](gctx, src, section, cred)
		if item != nil {
			sectionRaw = *item
		}
		return nil
	})
	for i, name := range names {
		extra := extras[name]
		g.Go(func() error {
			items := FetchList[json.RawMessage](gctx, src, extra.Collection, Query{Sort: extra.Sort}, cred)
			raw, err := json.Marshal(items)
			if err != nil {
				raw = json.RawMessage("[]")
			}
			results[i] = raw
			return nil
		})
	}
	_ = g.Wait()

	if sectionRaw == nil {
		sectionRaw = json.RawMessage("null")
	}
	out["section"] = sectionRaw
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func observe(collection, outcome string) {
	monitoring.CMSFetchCounter.WithLabelValues(collection, outcome).Inc()
}
