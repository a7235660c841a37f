package domain

// EnqueueRequest is the body of POST /api/v1/queue.
type EnqueueRequest struct {
	Config    ActionConfig `json:"config"`
	Recipient Recipient    `json:"recipient"`
}

// EnqueueBatchRequest is the body of POST /api/v1/queue/batch.
type EnqueueBatchRequest struct {
	Config     ActionConfig `json:"config"`
	Recipients []Recipient  `json:"recipients"`
}

// EnqueueResponse tells the caller which group the item joined.
type EnqueueResponse struct {
	ID         int64  `json:"id,omitempty"`
	ConfigHash string `json:"config_hash"`
	Queued     int    `json:"queued"`
}
