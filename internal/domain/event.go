package domain

import "time"

// QueuedEvent is one logical event awaiting fan-out delivery. Events live
// only in memory: a crash loses the queue, which is an accepted limitation
// of the single-instance design.
type QueuedEvent struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	Targets    []string       `json:"targets,omitempty"` // nil means broadcast
	Exclude    []string       `json:"exclude,omitempty"` // broadcast exclusion list
	Retries    int            `json:"retries"`
	MaxRetries int            `json:"max_retries"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// DispatchResult is the outcome of one delivery attempt to one platform.
type DispatchResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether any result in the set failed. Partial success
// still counts as a failed dispatch for retry purposes: the whole event is
// retried against its full target list, so recipients must tolerate
// duplicate delivery.
func Failed(results []DispatchResult) bool {
	for _, r := range results {
		if !r.Success {
			return true
		}
	}
	return false
}
