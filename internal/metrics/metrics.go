// Package metrics собирает метрики Prometheus по событиям жизненного цикла личности.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/proptrack-api/internal/analytics"
)

// Collector - приемник аналитики, переводящий события в счетчики
type Collector struct {
	events        *prometheus.CounterVec
	mergedRecords *prometheus.CounterVec
	mergeFailures *prometheus.CounterVec
	gatedActions  *prometheus.CounterVec
}

// NewCollector создает Collector и регистрирует метрики в реестре
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proptrack_analytics_events_total",
			Help: "Количество аналитических событий по типу",
		}, []string{"type"}),
		mergedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proptrack_merged_records_total",
			Help: "Количество записей, переназначенных постоянной личности",
		}, []string{"record_type"}),
		mergeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proptrack_merge_failures_total",
			Help: "Количество неудачных переназначений по типу записей",
		}, []string{"record_type"}),
		gatedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proptrack_gated_actions_total",
			Help: "Количество действий, отложенных до регистрации",
		}, []string{"action"}),
	}

	reg.MustRegister(c.events, c.mergedRecords, c.mergeFailures, c.gatedActions)
	return c
}

// Record обновляет счетчики по событию
func (c *Collector) Record(_ context.Context, ev analytics.Event) error {
	c.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case analytics.EventTempDataMerged:
		if counts, ok := ev.Metadata["merged_counts"].(map[string]int); ok {
			for recordType, n := range counts {
				c.mergedRecords.WithLabelValues(recordType).Add(float64(n))
			}
		}
		if failures, ok := ev.Metadata["failures"].([]string); ok {
			for _, recordType := range failures {
				c.mergeFailures.WithLabelValues(recordType).Inc()
			}
		}
	case analytics.EventActionGated:
		if action, ok := ev.Metadata["action"]; ok {
			c.gatedActions.WithLabelValues(fmt.Sprint(action)).Inc()
		}
	}
	return nil
}
