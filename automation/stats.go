package automation

import (
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	cacheRedis "crmhub/cache/redis"
	C "crmhub/config"
	U "crmhub/util"
)

const (
	executionCounterPrefix    = "automation:executions"
	executionCounterExpirySec = 2 * 24 * 60 * 60
)

func executionCounterKey(day time.Time) (*cacheRedis.Key, error) {
	return cacheRedis.NewKey(executionCounterPrefix, U.DateAsYYYYMMDD(day))
}

// incrExecutionCounter bumps the daily execution counter behind the
// stats fast path. Counter failures only degrade /automation/stats back
// to the ledger query.
func incrExecutionCounter(finishedAt time.Time) {
	if !C.IsCacheRedisEnabled() {
		return
	}

	key, err := executionCounterKey(finishedAt)
	if err != nil {
		return
	}

	count, err := cacheRedis.Incr(key)
	if err != nil {
		log.WithError(err).Warn("Failed to increment execution counter.")
		return
	}
	if count == 1 {
		if err := cacheRedis.SetExpiry(key, executionCounterExpirySec); err != nil {
			log.WithError(err).Warn("Failed to set execution counter expiry.")
		}
	}
}

// ExecutionsTodayFromCache reads today's execution counter. Not found
// when redis is disabled or the day's key is missing.
func ExecutionsTodayFromCache(now time.Time) (int64, bool) {
	if !C.IsCacheRedisEnabled() {
		return 0, false
	}

	key, err := executionCounterKey(now)
	if err != nil {
		return 0, false
	}

	value, err := cacheRedis.Get(key)
	if err != nil {
		return 0, false
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SeedExecutionsTodayCache primes the day's counter from a ledger count
// so subsequent stats reads stay on the cache.
func SeedExecutionsTodayCache(now time.Time, count int64) {
	if !C.IsCacheRedisEnabled() {
		return
	}

	key, err := executionCounterKey(now)
	if err != nil {
		return
	}

	if err := cacheRedis.Set(key, strconv.FormatInt(count, 10),
		executionCounterExpirySec); err != nil {
		log.WithError(err).Warn("Failed to seed execution counter.")
	}
}
