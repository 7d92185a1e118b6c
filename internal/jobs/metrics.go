package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a ledger task run.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the collectors of the ledger worker: task runs and their
// latency, integrity anomalies per kind, the size of the last integrity
// sweep and the events relayed from the outbox.
type Metrics struct {
	taskRuns    *prometheus.CounterVec
	taskSeconds *prometheus.HistogramVec
	anomalies   *prometheus.CounterVec
	swept       *prometheus.GaugeVec
	relayed     prometheus.Counter
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the worker collectors on registerer, or once on the
// default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

// TaskRun times one execution of a ledger task.
type TaskRun struct {
	m       *Metrics
	task    string
	started time.Time
}

// Start opens a run of task. A nil Metrics yields a run that records nothing.
func (m *Metrics) Start(task string) *TaskRun {
	return &TaskRun{m: m, task: task, started: time.Now()}
}

// Finish records the outcome and latency of the run and hands err back.
func (r *TaskRun) Finish(err error) error {
	if r == nil || r.m == nil || r.task == "" {
		return err
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	r.m.taskRuns.WithLabelValues(r.task, outcome).Inc()
	r.m.taskSeconds.WithLabelValues(r.task).Observe(time.Since(r.started).Seconds())
	return err
}

// RecordAnomaly counts one integrity anomaly of kind. Branch 0 is used for
// kinds that are not branch scoped, such as stock.
func (m *Metrics) RecordAnomaly(kind string, branchID int64) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(kind, strconv.FormatInt(max(branchID, 0), 10)).Inc()
}

// ObserveSweep stores how many ledgers, books and stock locations the last
// integrity run checked.
func (m *Metrics) ObserveSweep(ledgers, books, locations int) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues("ledgers").Set(float64(ledgers))
	m.swept.WithLabelValues("books").Set(float64(books))
	m.swept.WithLabelValues("locations").Set(float64(locations))
}

// AddRelayed counts outbox events handed to the publisher.
func (m *Metrics) AddRelayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayed.Add(float64(n))
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_task_runs_total",
			Help: "Ledger worker task runs by task and outcome.",
		}, []string{"task", "outcome"}),
		taskSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_task_duration_seconds",
			Help:    "Wall time of ledger worker tasks.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"task"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_integrity_anomalies_total",
			Help: "Stored balances that disagree with their replayed history, by kind and branch.",
		}, []string{"kind", "branch"}),
		swept: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_integrity_checked",
			Help: "Subjects covered by the last integrity run.",
		}, []string{"subject"}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_outbox_relayed_total",
			Help: "Outbox events published by the relay task.",
		}),
	}
	registerer.MustRegister(m.taskRuns, m.taskSeconds, m.anomalies, m.swept, m.relayed)
	return m
}
