package probe

import (
	"math"
	"sync"
	"time"
)

// FrameStats summarizes the latencies of rendered frames
type FrameStats struct {
	Frames int
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// NewFrameStats computes min, max, mean and the population standard deviation of latencies
func NewFrameStats(latencies []time.Duration) FrameStats {
	if len(latencies) == 0 {
		return FrameStats{}
	}

	minimum, maximum := latencies[0], latencies[0]
	var sum float64
	for _, l := range latencies {
		sum += float64(l)
		minimum = min(minimum, l)
		maximum = max(maximum, l)
	}
	mean := sum / float64(len(latencies))

	var squares float64
	for _, l := range latencies {
		diff := float64(l) - mean
		squares += diff * diff
	}

	return FrameStats{
		Frames: len(latencies),
		Min:    minimum,
		Max:    maximum,
		Mean:   time.Duration(mean),
		StdDev: time.Duration(math.Sqrt(squares / float64(len(latencies)))),
	}
}

// channelSizeBoundaries are the upper bounds of the payload size buckets, from 1KB to 256MB
var channelSizeBoundaries = []int{
	1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10,
	1 << 20, 4 << 20, 16 << 20, 64 << 20, 256 << 20,
}

// SizeHistogram tracks the distribution of received channel payload sizes
//
// Thread-safe: all methods are safe for concurrent use
type SizeHistogram struct {
	mu      sync.Mutex
	buckets []int64 // one more than boundaries for larger payloads
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]int64, len(channelSizeBoundaries)+1)}
}

// Add records a payload of size bytes
func (h *SizeHistogram) Add(size int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := len(channelSizeBoundaries)
	for j, boundary := range channelSizeBoundaries {
		if size <= boundary {
			i = j
			break
		}
	}
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

// Count returns the number of recorded payloads
func (h *SizeHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Average returns the mean payload size, 0 if nothing was recorded
func (h *SizeHistogram) Average() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// Percentile estimates the payload size below which p percent (0-100) of the payloads fall.
// The estimate is the midpoint of the bucket holding the percentile.
func (h *SizeHistogram) Percentile(p int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 || p < 0 || p > 100 {
		return 0
	}

	target := max(int64(math.Ceil(float64(h.count)*float64(p)/100)), 1)
	var cumulative int64
	for i, n := range h.buckets {
		cumulative += n
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return channelSizeBoundaries[0] / 2
		case i < len(channelSizeBoundaries):
			return (channelSizeBoundaries[i-1] + channelSizeBoundaries[i]) / 2
		default:
			return channelSizeBoundaries[len(channelSizeBoundaries)-1] * 2
		}
	}
	return int(h.sum / h.count)
}
