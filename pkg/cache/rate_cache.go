package cache

import (
	"sync"
	"time"
)

type cachedRate struct {
	rate      float64
	timestamp time.Time
}

var (
	cachedRates   = make(map[string]cachedRate)
	cacheDuration = 10 * time.Minute
	mu            sync.Mutex
)

// GetCachedRate возвращает курс из кэша или false, если его нет или он устарел.
func GetCachedRate(key string) (float64, bool) {
	mu.Lock()
	defer mu.Unlock()

	data, ok := cachedRates[key]
	if !ok {
		return 0, false
	}
	if time.Since(data.timestamp) > cacheDuration {
		return 0, false
	}
	return data.rate, true
}

// SetCachedRate сохраняет курс в кэш.
func SetCachedRate(key string, rate float64) {
	mu.Lock()
	defer mu.Unlock()

	cachedRates[key] = cachedRate{rate: rate, timestamp: time.Now()}
}
