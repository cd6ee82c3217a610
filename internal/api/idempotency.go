package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/punchamoorthee/shelfledger/internal/models"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyKeys = 1024

	statusInProgress = "in_progress"
	statusCompleted  = "completed"
)

var (
	errIdempotencyConflict = errors.New("request with this key is still in progress")
	errIdempotencyMismatch = errors.New("idempotency key reused with a different payload")
)

// idempotencyCache remembers the response to recent keyed requests. Only
// successful responses are kept; a failed request releases its key.
type idempotencyCache struct {
	mu      sync.Mutex
	max     int
	records map[string]*models.IdempotencyRecord
	order   []string
}

func newIdempotencyCache(max int) *idempotencyCache {
	return &idempotencyCache{max: max, records: make(map[string]*models.IdempotencyRecord)}
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// begin claims key for a request. A completed record with the same hash is
// returned for replay; nil means the caller owns the key.
func (c *idempotencyCache) begin(key, reqHash string) (*models.IdempotencyRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[key]; ok {
		if rec.RequestHash != reqHash {
			return nil, errIdempotencyMismatch
		}
		if rec.Status == statusInProgress {
			return nil, errIdempotencyConflict
		}
		replay := *rec
		return &replay, nil
	}

	c.records[key] = &models.IdempotencyRecord{Key: key, RequestHash: reqHash, Status: statusInProgress}
	c.order = append(c.order, key)
	c.evict()
	return nil, nil
}

func (c *idempotencyCache) complete(key string, status int, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[key]; ok {
		rec.Status = statusCompleted
		rec.ResponseStatus = status
		rec.ResponseBody = body
	}
}

func (c *idempotencyCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, key)
}

// evict drops the oldest completed keys beyond the limit. Must hold mu.
func (c *idempotencyCache) evict() {
	kept := c.order[:0]
	excess := len(c.records) - c.max
	for _, key := range c.order {
		rec, ok := c.records[key]
		if !ok {
			continue
		}
		if excess > 0 && rec.Status == statusCompleted {
			delete(c.records, key)
			excess--
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
