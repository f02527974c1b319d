package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Backoff intervals in minutes for each consecutive failure. After the last
// entry the schedule stays at the final value.
var backoffMinutes = []int{15, 30, 120, 480, 1440}

const maxStoredErrorLength = 500

// CooldownState is the persisted failure state between runs.
type CooldownState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	NextRetryAfter      time.Time `json:"next_retry_after,omitempty"`
	BackoffMinutes      int       `json:"backoff_minutes,omitempty"`
}

// Cooldown tracks consecutive fatal run failures in a JSON file and tells
// the agent to sit out scheduled runs while a backoff window is active. It
// exists so a persistent problem (expired token, provider outage) does not
// burn API quota or spam the notification channel every interval.
type Cooldown struct {
	filePath string
	mu       sync.Mutex
	now      func() time.Time
}

func NewCooldown(statePath string) (*Cooldown, error) {
	if dir := filepath.Dir(statePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cooldown state directory: %w", err)
		}
	}

	return &Cooldown{
		filePath: statePath,
		now:      time.Now,
	}, nil
}

// ShouldSkipRun reports whether the current run falls inside an active
// backoff window. The returned state is nil when no failures are recorded.
func (c *Cooldown) ShouldSkipRun() (bool, *CooldownState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.load()
	if state == nil || state.ConsecutiveFailures == 0 {
		return false, state
	}
	if state.NextRetryAfter.IsZero() {
		return false, state
	}

	now := c.now()
	if now.Before(state.NextRetryAfter) {
		minutesLeft := int(state.NextRetryAfter.Sub(now).Minutes())
		log.Printf("Cooldown active: %d consecutive failures. Next retry in %d minutes (at %s)",
			state.ConsecutiveFailures, minutesLeft, state.NextRetryAfter.Format(time.RFC3339))
		return true, state
	}

	log.Printf("Cooldown expired. Retrying after %d consecutive failures...", state.ConsecutiveFailures)
	return false, state
}

// RecordFailure bumps the failure count and schedules the next allowed run.
func (c *Cooldown) RecordFailure(errMsg string) (*CooldownState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.load()
	if state == nil {
		state = &CooldownState{}
	}

	state.ConsecutiveFailures++
	backoff := BackoffMinutes(state.ConsecutiveFailures)
	now := c.now()

	if len(errMsg) > maxStoredErrorLength {
		errMsg = errMsg[:maxStoredErrorLength]
	}

	state.LastFailureTime = now
	state.LastError = errMsg
	state.BackoffMinutes = backoff
	state.NextRetryAfter = now.Add(time.Duration(backoff) * time.Minute)

	if err := c.save(state); err != nil {
		return state, err
	}

	log.Printf("Recorded failure #%d. Next retry after %d minutes (at %s)",
		state.ConsecutiveFailures, backoff, state.NextRetryAfter.Format("2006-01-02 15:04 MST"))
	return state, nil
}

// RecordSuccess clears the cooldown. It returns the previous state when
// there was an active failure streak, so the caller can send a recovery
// notification.
func (c *Cooldown) RecordSuccess() (*CooldownState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.load()

	if err := c.save(&CooldownState{}); err != nil {
		return nil, err
	}

	if previous != nil && previous.ConsecutiveFailures > 0 {
		log.Printf("Recovered after %d consecutive failures. Cooldown cleared.", previous.ConsecutiveFailures)
		return previous, nil
	}
	return nil, nil
}

// BackoffMinutes returns the wait in minutes for the given failure count.
func BackoffMinutes(consecutiveFailures int) int {
	if consecutiveFailures <= 0 {
		return 0
	}
	index := consecutiveFailures - 1
	if index >= len(backoffMinutes) {
		index = len(backoffMinutes) - 1
	}
	return backoffMinutes[index]
}

func (c *Cooldown) load() *CooldownState {
	file, err := os.Open(c.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not read cooldown state: %v", err)
		}
		return nil
	}
	defer file.Close()

	var state CooldownState
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		log.Printf("Warning: could not decode cooldown state: %v", err)
		return nil
	}
	return &state
}

func (c *Cooldown) save(state *CooldownState) error {
	file, err := os.Create(c.filePath)
	if err != nil {
		return fmt.Errorf("failed to create cooldown state file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode cooldown state: %w", err)
	}
	return nil
}
