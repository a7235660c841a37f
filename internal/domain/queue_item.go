package domain

import "time"

// RecipientIDKey marks the recipient identity inside a QueueItem payload.
// It is stripped before the remaining payload tokens are overlaid on a message.
const RecipientIDKey = "__recipientId"

// QueueItem is one pending outbound request for a single recipient.
// Items sharing a ConfigHash were built from the same snapshot and are
// dispatched together.
type QueueItem struct {
	ID             int64      `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     *time.Time `json:"modified_at,omitempty"`
	Payload        []byte     `json:"payload"`
	ConfigHash     string     `json:"config_hash"`
	ConfigSnapshot []byte     `json:"config_snapshot"`
	RetryCount     int        `json:"retry_count"`
}

// Recipient identifies the contact a message is generated for. Tokens are
// per-recipient overrides copied into the payload next to the identity.
type Recipient struct {
	ID     string         `json:"id"`
	Tokens map[string]any `json:"tokens,omitempty"`
}

func (r Recipient) Validate() error {
	if r.ID == "" {
		return ErrInvalidRecipient
	}
	return nil
}

// Payload builds the JSON-shaped payload stored on a QueueItem.
func (r Recipient) Payload() map[string]any {
	p := make(map[string]any, len(r.Tokens)+1)
	for k, v := range r.Tokens {
		p[k] = v
	}
	p[RecipientIDKey] = r.ID
	return p
}

// Report is the counters triple returned by a dispatch cycle.
// Processed counts items removed from the queue (sent or retries exhausted);
// Scheduled counts items whose retry counter was incremented.
type Report struct {
	Eligible  int `json:"eligible"`
	Processed int `json:"processed"`
	Scheduled int `json:"scheduled"`
}

// Add folds a group outcome into the running totals.
func (r *Report) Add(o Outcome) {
	r.Processed += o.Processed
	r.Scheduled += o.Scheduled
}

// Outcome is the result of handling one config-hash group (or one item).
type Outcome struct {
	Processed int
	Scheduled int
}

// HashStat is the number of pending items for one config hash.
type HashStat struct {
	ConfigHash string `json:"config_hash"`
	Items      int    `json:"items"`
	MaxRetry   int    `json:"max_retry_count"`
}
