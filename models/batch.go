package models

// BatchRequest is the payload for POST /api/v1/batch/extract.
// Options other than URL are shared by every job in the batch.
type BatchRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,dive,url"`

	// Options is the per-URL extraction template. Its URL field is
	// ignored; each entry of URLs is substituted in turn.
	Options ExtractRequest `json:"options"`

	// WebhookURL, when set, receives an extract.batch.completed event
	// once every job has finished.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchResponse acknowledges an accepted batch job.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*ExtractResponse `json:"results"`
}

// BatchJob is the in-memory state of a batch extraction job.
type BatchJob struct {
	ID         string
	Status     string // "processing", "completed", "partial", "failed"
	Total      int
	Completed  int
	Results    []*ExtractResponse
	WebhookURL string
	CreatedAt  int64
}
