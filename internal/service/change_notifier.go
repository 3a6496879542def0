package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"maturity_backend/internal/directus"
	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var watchFields = []string{"id", "date_updated"}

type Broadcaster interface {
	Broadcast(ctx context.Context, msg WSMessage)
}

// HashStore 保存每个集合最近一次观察到的摘要
type HashStore interface {
	// Swap 写入新摘要并返回旧值，found 为 false 表示首次观察
	Swap(ctx context.Context, collection, hash string) (previous string, found bool, err error)
}

type memoryHashStore struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewMemoryHashStore() HashStore {
	return &memoryHashStore{hashes: map[string]string{}}
}

func (s *memoryHashStore) Swap(_ context.Context, collection, hash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.hashes[collection]
	s.hashes[collection] = hash
	return prev, ok, nil
}

// redisHashStore GETSET 保证多实例下同一变更只有一个实例看到旧值
type redisHashStore struct {
	client *redis.Client
}

func NewRedisHashStore(client *redis.Client) HashStore {
	return &redisHashStore{client: client}
}

func (s *redisHashStore) Swap(ctx context.Context, collection, hash string) (string, bool, error) {
	prev, err := s.client.GetSet(ctx, "notifier:hash:"+collection, hash).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return prev, true, nil
}

// ChangeNotifier 轮询 CMS 集合，内容变化时通知所有前端连接
type ChangeNotifier struct {
	Source      directus.Source
	Hub         Broadcaster
	Hashes      HashStore
	Collections []string
	Interval    time.Duration
}

func NewChangeNotifier(src directus.Source, hub Broadcaster, hashes HashStore, collections []string, interval time.Duration) *ChangeNotifier {
	if hashes == nil {
		hashes = NewMemoryHashStore()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ChangeNotifier{
		Source:      src,
		Hub:         hub,
		Hashes:      hashes,
		Collections: collections,
		Interval:    interval,
	}
}

func (n *ChangeNotifier) Run(ctx context.Context) {
	logger.Log.Info("Change notifier started",
		zap.Strings("collections", n.Collections),
		zap.Duration("interval", n.Interval))

	n.Check(ctx)
	ticker := time.NewTicker(n.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Change notifier stopped")
			return
		case <-ticker.C:
			n.Check(ctx)
		}
	}
}

// Check 检查一轮，返回发生变化的集合
func (n *ChangeNotifier) Check(ctx context.Context) []string {
	var changed []string
	for _, collection := range n.Collections {
		if ctx.Err() != nil {
			break
		}
		raw, err := n.Source.Items(ctx, collection, directus.Query{Fields: watchFields, Sort: []string{"id"}}, directus.Credential{})
		if err != nil {
			// 获取失败时不更新摘要，避免恢复后误报
			logger.Log.Debug("Change notifier fetch failed", zap.String("collection", collection), zap.Error(err))
			continue
		}

		sum := sha256.Sum256(raw)
		hash := hex.EncodeToString(sum[:])
		prev, found, err := n.Hashes.Swap(ctx, collection, hash)
		if err != nil {
			logger.Log.Warn("Change notifier hash store failed", zap.String("collection", collection), zap.Error(err))
			continue
		}
		if !found || prev == hash {
			continue
		}

		changed = append(changed, collection)
		monitoring.ContentChanges.WithLabelValues(collection).Inc()
		logger.Log.Info("Content changed", zap.String("collection", collection))
		n.Hub.Broadcast(ctx, WSMessage{
			Type: MessageContentUpdated,
			Data: map[string]string{"collection": collection},
		})
	}
	return changed
}
