// Package metrics publishes per-generation evolution progress as Prometheus
// collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geneticdfa/internal/evo"
)

type Collector struct {
	generations *prometheus.CounterVec
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	diversity   *prometheus.GaugeVec
	states      *prometheus.GaugeVec
	offspring   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCollector registers the evolution collectors on reg. A nil reg uses
// the default registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geneticdfa_generations_total",
			Help: "Generations ranked.",
		}, []string{"run_id"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geneticdfa_best_fitness",
			Help: "Best fitness of the latest ranked generation.",
		}, []string{"run_id"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geneticdfa_mean_fitness",
			Help: "Mean fitness of the latest ranked generation.",
		}, []string{"run_id"}),
		diversity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geneticdfa_fingerprint_diversity",
			Help: "Distinct automaton fingerprints in the latest generation.",
		}, []string{"run_id"}),
		states: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geneticdfa_best_states",
			Help: "State count of the best automaton.",
		}, []string{"run_id"}),
		offspring: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geneticdfa_offspring_total",
			Help: "Offspring produced, by reproduction kind.",
		}, []string{"run_id", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geneticdfa_generation_duration_seconds",
			Help:    "Wall time from breeding to ranking of one generation.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"run_id"}),
	}
	for _, collector := range []prometheus.Collector{c.generations, c.best, c.mean, c.diversity, c.states, c.offspring, c.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one generation report under runID.
func (c *Collector) Observe(runID string, report evo.GenerationReport) {
	diag := report.Diagnostics
	c.generations.WithLabelValues(runID).Inc()
	c.best.WithLabelValues(runID).Set(diag.BestFitness)
	c.mean.WithLabelValues(runID).Set(diag.MeanFitness)
	c.diversity.WithLabelValues(runID).Set(float64(diag.FingerprintDiversity))
	if report.Best.Chromosome != nil {
		c.states.WithLabelValues(runID).Set(float64(len(report.Best.Chromosome.States)))
	}
	c.offspring.WithLabelValues(runID, "mutation").Add(float64(diag.Mutations))
	c.offspring.WithLabelValues(runID, "crossover").Add(float64(diag.Crossovers))
	c.offspring.WithLabelValues(runID, "failed_mutation").Add(float64(diag.FailedMutations))
	c.duration.WithLabelValues(runID).Observe(report.Elapsed.Seconds())
}

// Observer adapts the collector to the monitor's callback.
func (c *Collector) Observer(runID string) evo.GenerationObserver {
	return func(_ context.Context, report evo.GenerationReport) error {
		c.Observe(runID, report)
		return nil
	}
}

// Handler serves the metrics gathered by g, or the default gatherer when g is
// nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
