// Package admission implements AdmissionControl: bounded global and
// per-user concurrency semaphores guarding the recommendation pipeline,
// plus distributed sliding-window rate limiters per provider node and
// per (node, userID) pair, grounded on the teacher's
// ui/security.EnhancedRedisRateLimiter (Redis sorted-set sliding
// window) and core.RedisClient's rate-limiting DB convention.
package admission

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codetop/reviewsched/domain"
)

// Config bounds the admission control instance.
type Config struct {
	GlobalConcurrency int
	PerUserConcurrency int
	AcquireTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.GlobalConcurrency <= 0 {
		c.GlobalConcurrency = 256
	}
	if c.PerUserConcurrency <= 0 {
		c.PerUserConcurrency = 4
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 500 * time.Millisecond
	}
	return c
}

// Control is the AdmissionControl contract.
type Control struct {
	cfg    Config
	global chan struct{}

	perUserMu sync.Mutex
	perUser   map[string]chan struct{}
}

// New builds a Control with the given config.
func New(cfg Config) *Control {
	cfg = cfg.withDefaults()
	return &Control{
		cfg:     cfg,
		global:  make(chan struct{}, cfg.GlobalConcurrency),
		perUser: make(map[string]chan struct{}),
	}
}

// Release is returned by Acquire and must be called exactly once to
// free the held slots.
type Release func()

// Acquire blocks (up to AcquireTimeout) for one global slot and one
// per-user slot. It returns a domain error of kind KindRateLimited if
// either is unavailable within the timeout.
func (c *Control) Acquire(ctx context.Context, userID string) (Release, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
	defer cancel()

	select {
	case c.global <- struct{}{}:
	case <-timeoutCtx.Done():
		return nil, domain.NewError("Acquire", domain.KindRateLimited, userID, nil)
	}

	userSem := c.userSemaphore(userID)
	select {
	case userSem <- struct{}{}:
	case <-timeoutCtx.Done():
		<-c.global
		return nil, domain.NewError("Acquire", domain.KindRateLimited, userID, nil)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-userSem
		<-c.global
	}, nil
}

func (c *Control) userSemaphore(userID string) chan struct{} {
	c.perUserMu.Lock()
	defer c.perUserMu.Unlock()
	sem, ok := c.perUser[userID]
	if !ok {
		sem = make(chan struct{}, c.cfg.PerUserConcurrency)
		c.perUser[userID] = sem
	}
	return sem
}

// NodeRateLimiter is a distributed sliding-window limiter scoped to one
// provider node, or to one (node, userID) pair, backed by Redis sorted
// sets the same way EnhancedRedisRateLimiter.Allow implements its
// window: ZRemRangeByScore to evict expired entries, ZCount against the
// configured limit, ZAdd + Expire on success. Fails open on Redis
// errors so a cache outage degrades to unlimited rather than wedging
// the pipeline.
type NodeRateLimiter struct {
	client            *redis.Client
	requestsPerMinute int
}

// NewNodeRateLimiter builds a NodeRateLimiter over client, allowing up
// to requestsPerMinute requests in any rolling 60s window per key.
func NewNodeRateLimiter(client *redis.Client, requestsPerMinute int) *NodeRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &NodeRateLimiter{client: client, requestsPerMinute: requestsPerMinute}
}

// Allow reports whether key (e.g. "node:<alias>" or "node:<alias>:user:<id>")
// may proceed under the current rolling window.
func (n *NodeRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)

	pipe := n.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", scoreOf(windowStart))
	countCmd := pipe.ZCount(ctx, key, scoreOf(windowStart), scoreOf(now))
	if _, err := pipe.Exec(ctx); err != nil {
		return true, nil // fail open
	}

	count, err := countCmd.Result()
	if err != nil {
		return true, nil
	}
	if count >= int64(n.requestsPerMinute) {
		return false, nil
	}

	member := uniqueMember(now)
	addPipe := n.client.TxPipeline()
	addPipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	addPipe.Expire(ctx, key, 2*time.Minute)
	if _, err := addPipe.Exec(ctx); err != nil {
		return true, nil
	}
	return true, nil
}

func scoreOf(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func uniqueMember(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixNano())
}
