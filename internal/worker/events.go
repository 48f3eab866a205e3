package worker

// IngestTaskPayload is the body of an ingest.task message.
type IngestTaskPayload struct {
	RunID         string `json:"run_id"`
	Path          string `json:"path"`
	IDStrategy    string `json:"id_strategy"`
	CorrelationID string `json:"correlation_id"`
}
