package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Collector exposes pull-based counters for Prometheus to scrape over
// statusapi's /metrics endpoint.
type Collector struct {
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsCancelled prometheus.Counter
	jobLatency    prometheus.Histogram
	schedulerTick prometheus.Counter
	queueDepth    *prometheus.GaugeVec
}

// NewCollector builds and registers every collector against the default
// registry. Call once at process start.
func NewCollector() *Collector {
	c := &Collector{
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigation_jobs_completed_total",
			Help: "Total number of irrigation jobs that completed successfully",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigation_jobs_failed_total",
			Help: "Total number of irrigation jobs that failed",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigation_jobs_cancelled_total",
			Help: "Total number of irrigation jobs cancelled before completion",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "irrigation_job_duration_seconds",
			Help:    "Time from the executor starting a job to its terminal state, in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		schedulerTick: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigation_scheduler_ticks_total",
			Help: "Total number of scheduler evaluation ticks",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irrigation_pump_queue_depth",
			Help: "Current number of queued jobs per pump",
		}, []string{"pump_id"}),
	}

	prometheus.MustRegister(c.jobsCompleted, c.jobsFailed, c.jobsCancelled, c.jobLatency, c.schedulerTick, c.queueDepth)
	return c
}

func (c *Collector) RecordCompleted(seconds float64) {
	c.jobsCompleted.Inc()
	c.jobLatency.Observe(seconds)
	Timing("irrigation.job.duration", seconds*1000, "outcome:completed")
}

func (c *Collector) RecordFailed(seconds float64) {
	c.jobsFailed.Inc()
	c.jobLatency.Observe(seconds)
	Timing("irrigation.job.duration", seconds*1000, "outcome:failed")
}

func (c *Collector) RecordCancelled(seconds float64) {
	c.jobsCancelled.Inc()
	c.jobLatency.Observe(seconds)
	Timing("irrigation.job.duration", seconds*1000, "outcome:cancelled")
}

func (c *Collector) RecordSchedulerTick() {
	c.schedulerTick.Inc()
}

func (c *Collector) SetQueueDepth(pumpID string, depth int) {
	c.queueDepth.WithLabelValues(pumpID).Set(float64(depth))
	Gauge("irrigation.pump.queue_depth", float64(depth), "pump_id:"+pumpID)
}

// Handler returns the HTTP handler statusapi mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
