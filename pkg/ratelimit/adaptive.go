package ratelimit

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// AdaptiveRateLimiter adjusts the refill rate of a token bucket based
// on system load, using the goroutine count as a cheap load proxy.
type AdaptiveRateLimiter struct {
	baseLimiter        *TokenBucket
	maxRate            float64
	minRate            float64
	currentRate        float64
	loadThreshold      float64 // 0.0-1.0 where 1.0 is full utilization
	currentLoad        float64
	requestCount       int64
	successCount       int64
	rejectionCount     int64
	mutex              sync.Mutex
	stopChan           chan struct{}
	adaptationInterval time.Duration
}

// NewAdaptiveRateLimiter creates an adaptive rate limiter and starts
// its adaptation loop.
func NewAdaptiveRateLimiter(maxTokens, maxRate, minRate float64, loadThreshold float64) *AdaptiveRateLimiter {
	arl := &AdaptiveRateLimiter{
		baseLimiter:        NewTokenBucket(maxTokens, maxRate),
		maxRate:            maxRate,
		minRate:            minRate,
		currentRate:        maxRate,
		loadThreshold:      loadThreshold,
		adaptationInterval: 5 * time.Second,
		stopChan:           make(chan struct{}),
	}

	go arl.adaptationLoop()

	return arl
}

// Allow checks if a request can proceed under the current rate
func (arl *AdaptiveRateLimiter) Allow() bool {
	atomic.AddInt64(&arl.requestCount, 1)

	allowed := arl.baseLimiter.Allow()

	if allowed {
		atomic.AddInt64(&arl.successCount, 1)
	} else {
		atomic.AddInt64(&arl.rejectionCount, 1)
	}

	return allowed
}

func (arl *AdaptiveRateLimiter) adaptationLoop() {
	ticker := time.NewTicker(arl.adaptationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			arl.adapt()
		case <-arl.stopChan:
			return
		}
	}
}

// adapt recomputes the refill rate from the current load. Above the
// threshold the rate scales down towards minRate; below it the rate
// scales back up towards maxRate.
func (arl *AdaptiveRateLimiter) adapt() {
	arl.mutex.Lock()
	defer arl.mutex.Unlock()

	arl.updateLoad()

	var newRate float64

	if arl.currentLoad > arl.loadThreshold {
		loadFactor := (arl.currentLoad - arl.loadThreshold) / (1.0 - arl.loadThreshold)
		if loadFactor > 1.0 {
			loadFactor = 1.0
		}
		newRate = arl.maxRate - (arl.maxRate-arl.minRate)*loadFactor
	} else {
		loadFactor := arl.currentLoad / arl.loadThreshold
		newRate = arl.minRate + (arl.maxRate-arl.minRate)*(1.0-loadFactor)
	}

	arl.currentRate = newRate
	arl.baseLimiter.refillRate = newRate
}

// updateLoad scales the goroutine count onto 0.0-1.0
func (arl *AdaptiveRateLimiter) updateLoad() {
	const maxGoroutines = 10000

	arl.currentLoad = float64(runtime.NumGoroutine()) / float64(maxGoroutines)
	if arl.currentLoad > 1.0 {
		arl.currentLoad = 1.0
	}
}

// Stop terminates the adaptation loop
func (arl *AdaptiveRateLimiter) Stop() {
	close(arl.stopChan)
}

// GetMetrics returns a snapshot of the limiter state and counters
func (arl *AdaptiveRateLimiter) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"current_rate":     arl.currentRate,
		"max_rate":         arl.maxRate,
		"min_rate":         arl.minRate,
		"current_load":     arl.currentLoad,
		"load_threshold":   arl.loadThreshold,
		"request_count":    atomic.LoadInt64(&arl.requestCount),
		"success_count":    atomic.LoadInt64(&arl.successCount),
		"rejection_count":  atomic.LoadInt64(&arl.rejectionCount),
		"available_tokens": arl.baseLimiter.Available(),
	}
}

// Reset restores the limiter to its initial state
func (arl *AdaptiveRateLimiter) Reset() {
	arl.mutex.Lock()
	defer arl.mutex.Unlock()

	arl.baseLimiter.Reset()
	arl.currentRate = arl.maxRate
	arl.baseLimiter.refillRate = arl.maxRate

	atomic.StoreInt64(&arl.requestCount, 0)
	atomic.StoreInt64(&arl.successCount, 0)
	atomic.StoreInt64(&arl.rejectionCount, 0)
}
