package fetch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests to the single target host for politeness.
// A zero minimum delay disables it entirely.
type RateLimiter struct {
	lastRequest   time.Time
	lastRequestMu sync.Mutex
	minDelay      time.Duration
	log           *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(minDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		minDelay: minDelay,
		log:      log,
	}
}

// ApplyDelay sleeps if the time since the last request is less than the
// configured minimum. Includes jitter (+/- 10%) to desynchronize requests.
func (rl *RateLimiter) ApplyDelay() {
	if rl.minDelay <= 0 {
		return
	}

	// Read last request time safely
	rl.lastRequestMu.Lock()
	lastReqTime := rl.lastRequest
	rl.lastRequestMu.Unlock() // Unlock before potentially sleeping

	if lastReqTime.IsZero() {
		return
	}

	elapsed := time.Since(lastReqTime)
	if elapsed >= rl.minDelay {
		return
	}
	sleepDuration := rl.minDelay - elapsed

	// Add jitter: +/- 10% of sleepDuration
	var jitter time.Duration
	if sleepDuration > 0 {
		jitterRange := int64(sleepDuration) / 5 // 20% range width for +/-10%
		if jitterRange > 0 {                    // Avoid Int63n(0)
			jitter = time.Duration(rand.Int63n(jitterRange)) - (sleepDuration / 10)
		}
	}

	finalSleep := sleepDuration + jitter
	if finalSleep < 0 {
		finalSleep = 0
	}

	if finalSleep > 0 {
		rl.log.WithFields(logrus.Fields{
			"sleep": finalSleep, "required_delay": rl.minDelay, "elapsed": elapsed,
		}).Debug("Rate limit applying sleep")
		time.Sleep(finalSleep)
	}
}

// UpdateLastRequestTime records the current time as the last request attempt time.
// Call this *after* an HTTP request attempt.
func (rl *RateLimiter) UpdateLastRequestTime() {
	rl.lastRequestMu.Lock()
	rl.lastRequest = time.Now()
	rl.lastRequestMu.Unlock()
}
