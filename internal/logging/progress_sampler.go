package logging

import (
	"strings"
	"time"
)

// ProgressSampler suppresses repetitive progress updates while preserving
// signal when stages or percentage buckets change. It throttles on both a
// percent bucket and a minimum wall-clock interval so long transcriptions
// neither flood nor starve the status stream.
type ProgressSampler struct {
	bucketSize  float64
	minInterval time.Duration
	now         func() time.Time

	lastStage  string
	lastBucket int
	lastEmit   time.Time
}

// NewProgressSampler constructs a sampler that emits when the percent
// crosses bucket boundaries (default 5%) or when the stage changes, but
// never more often than minInterval (0 disables the time gate).
func NewProgressSampler(bucketSize float64, minInterval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{
		bucketSize:  bucketSize,
		minInterval: minInterval,
		now:         time.Now,
		lastBucket:  -1,
	}
}

// ShouldEmit reports whether a progress event should be published. Percent
// can be negative to indicate "unknown"; stage is trimmed before
// comparison. Stage changes always emit regardless of timing.
func (s *ProgressSampler) ShouldEmit(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		if percent >= 0 {
			s.lastBucket = int(percent / s.bucketSize)
		}
		s.lastEmit = s.now()
		return true
	}

	if percent < 0 {
		return false
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket <= s.lastBucket {
		return false
	}
	if s.minInterval > 0 && !s.lastEmit.IsZero() && s.now().Sub(s.lastEmit) < s.minInterval && percent < 100 {
		return false
	}
	s.lastBucket = bucket
	s.lastEmit = s.now()
	return true
}

// Reset clears the sampler state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
