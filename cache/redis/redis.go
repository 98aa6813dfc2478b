package redis

import (
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	C "crmhub/config"
)

type Key struct {
	// Prefix - Helps better grouping and searching
	// i.e table_name + index_name
	Prefix string
	// Suffix - optional
	Suffix string
}

var (
	ErrorInvalidPrefix = errors.New("invalid key prefix")
	ErrorInvalidKey    = errors.New("invalid redis cache key")
)

func NewKey(prefix string, suffix string) (*Key, error) {
	if prefix == "" {
		return nil, ErrorInvalidPrefix
	}

	return &Key{Prefix: prefix, Suffix: suffix}, nil
}

func (key *Key) Key() (string, error) {
	if key.Prefix == "" {
		return "", ErrorInvalidPrefix
	}

	if key.Suffix == "" {
		return key.Prefix, nil
	}

	// key: i.e, automation:executions:20260831
	return fmt.Sprintf("%s:%s", key.Prefix, key.Suffix), nil
}

func Set(key *Key, value string, expiryInSecs float64) error {
	if key == nil {
		return ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	if expiryInSecs == 0 {
		_, err = redisConn.Do("SET", cKey, value)
	} else {
		_, err = redisConn.Do("SET", cKey, value, "EX", expiryInSecs)
	}

	return err
}

func Get(key *Key) (string, error) {
	if key == nil {
		return "", ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return "", err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	return redis.String(redisConn.Do("GET", cKey))
}

// Incr increments the key and returns the new count.
func Incr(key *Key) (int64, error) {
	if key == nil {
		return 0, ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return 0, err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	return redis.Int64(redisConn.Do("INCR", cKey))
}

func SetExpiry(key *Key, expiryInSecs int64) error {
	if key == nil {
		return ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	_, err = redisConn.Do("EXPIRE", cKey, expiryInSecs)
	return err
}

// SetNX sets the key only if it does not exist yet and reports whether it
// was set. Used as a cross-process guard for scan windows.
func SetNX(key *Key, value string, expiryInSecs int64) (bool, error) {
	if key == nil {
		return false, ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return false, err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	reply, err := redisConn.Do("SET", cKey, value, "NX", "EX", expiryInSecs)
	if err != nil {
		return false, err
	}
	return reply != nil, nil
}
