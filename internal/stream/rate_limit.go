package stream

import (
	"sync"
)

// Rejection reasons, also used as metric labels.
const (
	limitPerIP = "per_ip_limit"
	limitTotal = "total_limit"
)

// streamLimiter caps concurrent frame streams per client IP and overall.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	if maxTotal <= 0 {
		maxTotal = 1000
	}
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a stream slot for ip. On success it returns a release
// func that is safe to call more than once; otherwise it returns the reason
// the slot was refused.
func (l *streamLimiter) acquire(ip string) (release func(), reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return nil, limitTotal
	case l.perIP[ip] >= l.maxPerIP:
		return nil, limitPerIP
	}

	l.perIP[ip]++
	l.total++

	var once sync.Once
	return func() { once.Do(func() { l.release(ip) }) }, ""
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.perIP[ip]--; l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// count returns the active streams for ip and overall.
func (l *streamLimiter) count(ip string) (perIP, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip], l.total
}
