package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/scribelab/scribe/internal/store"
)

const (
	quotaLockKey      = "quota:reset:lock"
	quotaLastResetKey = "quota:reset:last"
)

// Scheduler replenishes user credits on the configured cron schedule. The
// Redis SetNX lock keeps multiple nodes from replenishing twice in the same
// window.
type Scheduler struct {
	Store       *store.Store
	Rdb         *redis.Client
	Cron        string
	ReplenishTo int
	Stop        chan struct{}
	Logger      *log.Logger
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return s.Logger
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	last := s.lastReset(ctx)
	if !isDue(s.Cron, last) {
		return
	}
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, quotaLockKey, "1", 2*time.Minute).Result()
		if err != nil || !ok {
			return
		}
		defer s.Rdb.Del(ctx, quotaLockKey)
	}

	n, err := s.Store.ReplenishCredits(ctx, s.ReplenishTo)
	if err != nil {
		s.logger().Printf("credit replenishment failed: %v", err)
		return
	}
	s.logger().Printf("replenished credits for %d users", n)
	if s.Rdb != nil {
		s.Rdb.Set(ctx, quotaLastResetKey, time.Now().UTC().Format(time.RFC3339), 0)
	}
}

func (s *Scheduler) lastReset(ctx context.Context) *time.Time {
	if s.Rdb == nil {
		return nil
	}
	raw, err := s.Rdb.Get(ctx, quotaLastResetKey).Result()
	if err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// isDue determines if a reset with cronSpec should run now given the last
// reset time. Supports "@daily", "@hourly", and standard cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Invalid spec falls back to @daily.
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
