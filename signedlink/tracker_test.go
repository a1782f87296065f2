package signedlink_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-accounts/signedlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerConsume(t *testing.T) {
	tracker := signedlink.NewMemoryTracker(time.Minute)

	until := time.Now().Add(time.Hour)
	assert.True(t, tracker.Consume("abc", until))
	assert.False(t, tracker.Consume("abc", until))
	assert.True(t, tracker.Consume("def", until))
	assert.Equal(t, 2, tracker.Len())
}

func TestMemoryTrackerPastDeadline(t *testing.T) {
	tracker := signedlink.NewMemoryTracker(0)

	past := time.Now().Add(-time.Minute)
	assert.True(t, tracker.Consume("late", past))
	assert.False(t, tracker.Consume("late", past))
}

func TestValidateOnce(t *testing.T) {
	s, clock := newSigner(t)
	tracker := signedlink.NewMemoryTracker(time.Minute)

	signed, err := s.Generate("https://api.example.com/activate", map[string]string{"email": "a@b.com"}, time.Hour)
	require.NoError(t, err)

	assert.True(t, s.ValidateOnce(signed, tracker))
	assert.False(t, s.ValidateOnce(signed, tracker))

	// plain validation is unaffected by consumption
	assert.True(t, s.Validate(signed))

	clock.Advance(time.Second)
	fresh, err := s.Generate("https://api.example.com/activate", map[string]string{"email": "a@b.com"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, s.ValidateOnce(fresh, tracker))
}

func TestValidateOnceRejectsInvalidWithoutConsuming(t *testing.T) {
	s, _ := newSigner(t)
	tracker := signedlink.NewMemoryTracker(time.Minute)

	assert.False(t, s.ValidateOnce("https://api.example.com/activate?email=a%40b.com", tracker))
	assert.Equal(t, 0, tracker.Len())
}

func TestValidateOnceNilTracker(t *testing.T) {
	s, _ := newSigner(t)

	signed, err := s.Generate("https://api.example.com/activate", nil, time.Hour)
	require.NoError(t, err)

	assert.True(t, s.ValidateOnce(signed, nil))
	assert.True(t, s.ValidateOnce(signed, nil))
}

func TestValidateOnceConcurrent(t *testing.T) {
	s, _ := newSigner(t)
	tracker := signedlink.NewMemoryTracker(time.Minute)

	signed, err := s.Generate("https://api.example.com/activate", map[string]string{"email": "a@b.com"}, time.Hour)
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ValidateOnce(signed, tracker) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
