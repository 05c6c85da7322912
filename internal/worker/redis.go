package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"docuchat/internal/redis"
)

const (
	redisInvalidateChannel = "extract:invalidate"
	redisExtractTTL        = 30 * time.Minute
)

type invalidateMessage struct {
	UserID   int64 `json:"user_id"`
	UploadID int64 `json:"upload_id"`
}

type cachedExtraction struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

// extractCache stores finished extractions in redis and broadcasts
// invalidations so other nodes can drop their in-memory memos.
type extractCache struct {
	client *redis.Client
}

func newExtractCache(client *redis.Client) *extractCache {
	return &extractCache{client: client}
}

// startListener redis listener using sub chan
func (r *extractCache) startListener(handler func(invalidateMessage)) {
	if r == nil || r.client == nil || handler == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	go func() {
		ctx := context.Background()
		pubsub := raw.Subscribe(ctx, redisInvalidateChannel)
		ch := pubsub.Channel()
		for msg := range ch {
			var inv invalidateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				log.Printf("extract invalidation decode failed: %v", err)
				continue
			}
			handler(inv)
		}
	}()
}

// publishInvalidation broadcast invalidate msg
func (r *extractCache) publishInvalidation(msg invalidateMessage) {
	if r == nil || r.client == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("extract invalidation marshal failed: %v", err)
		return
	}
	if err := raw.Publish(context.Background(), redisInvalidateChannel, payload).Err(); err != nil {
		log.Printf("extract publish invalidation failed: %v", err)
	}
}

func (r *extractCache) cacheExtraction(uploadID int64, text string, pages int) {
	if r == nil || r.client == nil || uploadID <= 0 {
		return
	}
	data, err := json.Marshal(cachedExtraction{Text: text, Pages: pages})
	if err != nil {
		log.Printf("extract rdb marshal failed: %v", err)
		return
	}
	key := extractKey(uploadID)
	if err := r.client.Set(context.Background(), key, data, redisExtractTTL); err != nil {
		log.Printf("extract rdb set failed: %v", err)
	}
}

func (r *extractCache) loadExtraction(uploadID int64) (string, int, bool) {
	if r == nil || r.client == nil || uploadID <= 0 {
		return "", 0, false
	}
	raw, err := r.client.Get(context.Background(), extractKey(uploadID))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("extract rdb get failed: %v", err)
		}
		return "", 0, false
	}
	var cached cachedExtraction
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		log.Printf("extract rdb decode failed: %v", err)
		return "", 0, false
	}
	return cached.Text, cached.Pages, true
}

func (r *extractCache) invalidateUpload(uploadID int64) {
	if r == nil || r.client == nil || uploadID <= 0 {
		return
	}
	if err := r.client.Del(context.Background(), extractKey(uploadID)); err != nil && err != redis.ErrCacheMiss {
		log.Printf("extract rdb invalidate failed: %v", err)
	}
}

func extractKey(uploadID int64) string {
	return fmt.Sprintf("extract:upload:%d", uploadID)
}
