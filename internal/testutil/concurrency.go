package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
)

// SleepingLLM is a shared backend for concurrency tests. It records the
// execution window of each call, keyed by the last user message.
type SleepingLLM struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleepingLLM creates a new sleeper backend for testing.
func NewSleepingLLM(completionChan chan<- string, sleep time.Duration) *SleepingLLM {
	return &SleepingLLM{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

func (s *SleepingLLM) Generate(ctx context.Context, req registry.ChatRequest) (registry.ChatResponse, error) {
	key := ""
	if n := len(req.Messages); n > 0 {
		key = req.Messages[n-1].Content
	}

	startTime := time.Now()
	select {
	case <-time.After(s.sleepDuration):
	case <-ctx.Done():
		return registry.ChatResponse{}, ctx.Err()
	}
	endTime := time.Now()

	s.mu.Lock()
	s.ExecutionTimes[key] = &ExecutionRecord{Start: startTime, End: endTime}
	s.mu.Unlock()

	if s.completionChan != nil {
		s.completionChan <- key
	}
	return registry.ChatResponse{Text: key}, nil
}

// Record returns the execution window recorded for key.
func (s *SleepingLLM) Record(key string) (*ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ExecutionTimes[key]
	return r, ok
}
