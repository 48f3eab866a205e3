package config

const (
	// TopicIngestTask carries queued ingestion runs to the ingest worker.
	TopicIngestTask = "ingest.task"

	// ChannelIngestWorker is the channel the ingest worker consumes from.
	ChannelIngestWorker = "ingest_worker"
)
