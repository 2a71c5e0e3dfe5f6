package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/metrics"
	"github.com/david/grant-assistant/internal/models"
)

const cacheKeyPrefix = "grants:opp:"

// CachedSource memoizes another source in redis. Redis failures degrade to
// the wrapped source; they are never returned to the caller.
type CachedSource struct {
	next   OpportunitySource
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewCachedSource(next OpportunitySource, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedSource {
	return &CachedSource{next: next, client: client, ttl: ttl, log: log}
}

func (c *CachedSource) Get(ctx context.Context, id string) (models.Opportunity, error) {
	key := cacheKeyPrefix + "id:" + id

	var opp models.Opportunity
	if c.lookup(ctx, key, &opp) {
		return opp, nil
	}

	opp, err := c.next.Get(ctx, id)
	if err != nil {
		return opp, err
	}
	c.store(ctx, key, opp)
	return opp, nil
}

func (c *CachedSource) Candidates(ctx context.Context, q models.SearchQuery) ([]models.Opportunity, error) {
	key := cacheKeyPrefix + "q:" + queryKey(q)

	var opps []models.Opportunity
	if c.lookup(ctx, key, &opps) {
		return opps, nil
	}

	opps, err := c.next.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, opps)
	return opps, nil
}

func (c *CachedSource) lookup(ctx context.Context, key string, dest interface{}) bool {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("opportunity cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
			metrics.CacheLookups.WithLabelValues("error").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warn("opportunity cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

func (c *CachedSource) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("opportunity cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// queryKey hashes the filter-relevant fields. Candidate sets depend on the
// hard filters only, so keywords and topics stay out of the key.
func queryKey(q models.SearchQuery) string {
	data, _ := json.Marshal(struct {
		OrgType            models.OrgType `json:"o"`
		MinAmount          *float64       `json:"min"`
		MaxAmount          *float64       `json:"max"`
		DeadlineWithinDays *int           `json:"d"`
	}{q.OrgType, q.MinAmount, q.MaxAmount, q.DeadlineWithinDays})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
