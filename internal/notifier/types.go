package notifier

import "time"

// Config controls the delivery pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At     time.Time `json:"at"`
	Handle int32     `json:"handle"`
	Text   string    `json:"text"`
}

// DeliveryEvent is published on the event bus for every delivery outcome.
type DeliveryEvent struct {
	Sender string    `json:"sender"`
	Handle int32     `json:"handle"`
	TaskID string    `json:"task_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
