package ports

import "time"

// MetricsCollector records orchestration metrics
type MetricsCollector interface {
	RecordPipelineSubmitted(kind string)
	RecordPipelineFinished(status string, duration time.Duration)
	RecordNodeExecuted(nodeID, status string, duration time.Duration)
	RecordQueueWait(duration time.Duration)
	SetQueueDepth(queue string, depth int)
	SetActivePipelines(count int)
	RecordUnorderedTask(status string)
	RecordWorkerPoolStatus(pool string, idle, busy, stopped int)
	RecordEventPosted(kind string)
	RecordRegionsReceived(count int)
}
