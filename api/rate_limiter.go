package api

import (
	"net/http"
	"sync"
	"time"
)

// Limiter is a token-bucket rate limiter keyed by a caller-defined id
// (client IP, account email). Each key gets its own bucket of rps tokens,
// refilled at a steady rate by a background goroutine.
type Limiter struct {
	buckets map[string]chan struct{}
	rps     int
	keyFor  func(*http.Request) string
	mutex   sync.Mutex
}

func NewLimiter(rps int, keyFor func(*http.Request) string) *Limiter {
	return &Limiter{
		buckets: make(map[string]chan struct{}),
		rps:     rps,
		keyFor:  keyFor,
	}
}

func RateLimit(handler http.HandlerFunc, limiter *Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := limiter.keyFor(r)

		limiter.mutex.Lock()
		bucket, ok := limiter.buckets[key]
		if !ok {
			bucket = make(chan struct{}, limiter.rps)
			for i := 0; i < limiter.rps; i++ {
				bucket <- struct{}{}
			}
			limiter.buckets[key] = bucket

			go refillBucket(bucket, limiter.rps)
		}
		limiter.mutex.Unlock()

		select {
		case <-bucket:
			handler(w, r)
		default:
			writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
		}
	}
}

func refillBucket(bucket chan struct{}, rps int) {
	ticker := time.NewTicker(time.Second / time.Duration(rps))
	defer ticker.Stop()

	for range ticker.C {
		select {
		case bucket <- struct{}{}:
		default:
		}
	}
}
