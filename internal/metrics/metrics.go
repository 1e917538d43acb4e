// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrdersPriced считает рассчитанные заказы по режиму ввода.
var OrdersPriced = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "pricing",
	Name:      "orders_priced_total",
	Help:      "Total orders priced, by input mode.",
}, []string{"mode"})

// PromoApplied считает заказы, получившие акционную цену на воду.
var PromoApplied = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "pricing",
	Name:      "promo_applied_total",
	Help:      "Total orders priced with the promotional water price.",
})

// DegradedLookups считает обращения к акции или прайсу, завершившиеся откатом на значения по умолчанию.
var DegradedLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "pricing",
	Name:      "degraded_lookups_total",
	Help:      "Total promo or catalog lookups that fell back to defaults.",
}, []string{"source"})

// ReconcileRetries считает повторы транзакции пересчёта долга.
var ReconcileRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "ledger",
	Name:      "reconcile_retries_total",
	Help:      "Total retries of ledger transactions after a serialization conflict.",
})

// ReconcileFailures считает транзакции, не завершившиеся после всех повторов.
var ReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "ledger",
	Name:      "reconcile_failures_total",
	Help:      "Total ledger transactions that failed after exhausting retries.",
})

// AuditDropped считает записи журнала, которые не удалось сохранить.
var AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watersub",
	Subsystem: "audit",
	Name:      "records_dropped_total",
	Help:      "Total audit records that could not be persisted.",
})
