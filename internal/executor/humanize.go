package executor

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext is the real Sleeper
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacing bounds in milliseconds
const (
	tapBaseMinMS  = 80
	tapBaseMaxMS  = 220
	tapLevelMinMS = 20
	tapLevelMaxMS = 120
	keyMinMS      = 40
	keyMaxMS      = 140
)

// Humanizer randomises action pacing. A level of zero or less disables it.
type Humanizer struct {
	level int
	sleep Sleeper

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHumanizer builds a Humanizer. A zero seed is time based; a nil sleep
// uses SleepWithContext.
func NewHumanizer(level int, seed int64, sleep Sleeper) *Humanizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if sleep == nil {
		sleep = SleepWithContext
	}
	return &Humanizer{
		level: level,
		sleep: sleep,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Enabled reports whether pacing is active
func (h *Humanizer) Enabled() bool {
	return h != nil && h.level > 0
}

// Level returns the configured intensity
func (h *Humanizer) Level() int {
	if h == nil {
		return 0
	}
	return h.level
}

func (h *Humanizer) randomInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	if min == max {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + h.rng.Intn(max-min+1)
}

// TapDelay is the pause before a tap: base(80-220ms) + level*rand(20-120ms)
func (h *Humanizer) TapDelay() time.Duration {
	if !h.Enabled() {
		return 0
	}
	ms := h.randomInt(tapBaseMinMS, tapBaseMaxMS) + h.level*h.randomInt(tapLevelMinMS, tapLevelMaxMS)
	return time.Duration(ms) * time.Millisecond
}

// KeyDelay is the pause between two keystrokes (40-140ms)
func (h *Humanizer) KeyDelay() time.Duration {
	if !h.Enabled() {
		return 0
	}
	return time.Duration(h.randomInt(keyMinMS, keyMaxMS)) * time.Millisecond
}

// BeforeTap sleeps for TapDelay
func (h *Humanizer) BeforeTap(ctx context.Context) error {
	if !h.Enabled() {
		return nil
	}
	return h.sleep(ctx, h.TapDelay())
}

// BetweenKeys sleeps for KeyDelay
func (h *Humanizer) BetweenKeys(ctx context.Context) error {
	if !h.Enabled() {
		return nil
	}
	return h.sleep(ctx, h.KeyDelay())
}

// TapBudget is the longest pause BeforeTap can take
func (h *Humanizer) TapBudget() time.Duration {
	if !h.Enabled() {
		return 0
	}
	return time.Duration(tapBaseMaxMS+h.level*tapLevelMaxMS) * time.Millisecond
}

// TypingBudget is the longest the paced entry of text can take
func (h *Humanizer) TypingBudget(text string) time.Duration {
	if !h.Enabled() {
		return 0
	}
	return time.Duration(utf8.RuneCountInString(text)*keyMaxMS) * time.Millisecond
}
