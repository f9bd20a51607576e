package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	pipelinesSubmitted *prometheus.CounterVec
	pipelinesFinished  *prometheus.CounterVec
	pipelineDuration   prometheus.Histogram
	nodesExecuted      *prometheus.CounterVec
	nodeDuration       *prometheus.HistogramVec
	queueDepth         *prometheus.GaugeVec
	queueWaitTime      prometheus.Histogram
	activePipelines    prometheus.Gauge
	unorderedTasks     *prometheus.CounterVec
	workerPoolIdle     *prometheus.GaugeVec
	workerPoolBusy     *prometheus.GaugeVec
	workerPoolStopped  *prometheus.GaugeVec
	eventsPosted       *prometheus.CounterVec
	regionsReceived    prometheus.Counter
}

// NewCollector creates a new Prometheus metrics collector registered with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		pipelinesSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rover_pipelines_submitted_total",
				Help: "Total number of event pipelines submitted",
			},
			[]string{"event_kind"},
		),
		pipelinesFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rover_pipelines_finished_total",
				Help: "Total number of event pipelines finished",
			},
			[]string{"status"},
		),
		pipelineDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rover_pipeline_duration_seconds",
				Help:    "Pipeline duration from start to finish in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		nodesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rover_nodes_executed_total",
				Help: "Total number of pipeline nodes that reached a terminal state",
			},
			[]string{"node", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rover_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"node"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rover_queue_depth",
				Help: "Current depth of submission lanes",
			},
			[]string{"queue"},
		),
		queueWaitTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rover_queue_wait_time_seconds",
				Help:    "Time a pipeline spent queued on the ordered lane",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		activePipelines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rover_active_pipelines",
				Help: "Number of pipelines queued or running on the ordered lane",
			},
		),
		unorderedTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rover_unordered_tasks_total",
				Help: "Total number of independent tasks run on the unordered lane",
			},
			[]string{"status"},
		),
		workerPoolIdle: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rover_worker_pool_idle",
				Help: "Number of idle workers",
			},
			[]string{"pool"},
		),
		workerPoolBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rover_worker_pool_busy",
				Help: "Number of busy workers",
			},
			[]string{"pool"},
		),
		workerPoolStopped: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rover_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
			[]string{"pool"},
		),
		eventsPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rover_events_posted_total",
				Help: "Total number of events acknowledged by the backend",
			},
			[]string{"event_kind"},
		),
		regionsReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rover_regions_received_total",
				Help: "Total number of regions received from the backend",
			},
		),
	}
}

// RecordPipelineSubmitted records a pipeline submission
func (c *Collector) RecordPipelineSubmitted(kind string) {
	c.pipelinesSubmitted.WithLabelValues(kind).Inc()
}

// RecordPipelineFinished records a pipeline reaching a terminal status
func (c *Collector) RecordPipelineFinished(status string, duration time.Duration) {
	c.pipelinesFinished.WithLabelValues(status).Inc()
	c.pipelineDuration.Observe(duration.Seconds())
}

// RecordNodeExecuted records a node reaching a terminal state
func (c *Collector) RecordNodeExecuted(nodeID, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeID, status).Inc()
	if duration > 0 {
		c.nodeDuration.WithLabelValues(nodeID).Observe(duration.Seconds())
	}
}

// RecordQueueWait records how long a pipeline waited on the ordered lane
func (c *Collector) RecordQueueWait(duration time.Duration) {
	c.queueWaitTime.Observe(duration.Seconds())
}

// SetQueueDepth sets the current depth of a lane
func (c *Collector) SetQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetActivePipelines sets the number of pipelines owned by the ordered lane
func (c *Collector) SetActivePipelines(count int) {
	c.activePipelines.Set(float64(count))
}

// RecordUnorderedTask records an independent task outcome
func (c *Collector) RecordUnorderedTask(status string) {
	c.unorderedTasks.WithLabelValues(status).Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(pool string, idle, busy, stopped int) {
	c.workerPoolIdle.WithLabelValues(pool).Set(float64(idle))
	c.workerPoolBusy.WithLabelValues(pool).Set(float64(busy))
	c.workerPoolStopped.WithLabelValues(pool).Set(float64(stopped))
}

// RecordEventPosted records an event acknowledged by the backend
func (c *Collector) RecordEventPosted(kind string) {
	c.eventsPosted.WithLabelValues(kind).Inc()
}

// RecordRegionsReceived records regions mapped from a response
func (c *Collector) RecordRegionsReceived(count int) {
	c.regionsReceived.Add(float64(count))
}
