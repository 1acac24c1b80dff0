package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var casesCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_cases_created",
	Help: "Number of moderation cases written to the ledger",
}, []string{"action", "origin"})

var caseActionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_case_action_errors",
	Help: "Number of platform actions which failed before a case was written",
}, []string{"action"})

var caseInconsistencyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kagura_case_write_inconsistencies",
	Help: "Number of times a platform action succeeded but the ledger write failed",
})

var lockContentionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_action_lock_contention",
	Help: "Number of case creations rejected by the idempotency lock",
}, []string{"action"})

var reportsCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_reports_created",
	Help: "Number of reports written to the ledger",
}, []string{"type"})

var reportsDedupedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_reports_deduped",
	Help: "Number of report submissions rejected as duplicates",
}, []string{"rule"})

var reportsResolvedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_reports_resolved",
	Help: "Number of report status transitions",
}, []string{"status"})

var schedulerScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "kagura_scheduler_scan_duration_sec",
	Help: "Duration of expiration scheduler scans",
})

var schedulerResolvedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kagura_scheduler_cases_resolved",
	Help: "Number of expired timed actions resolved by the scheduler",
})

var schedulerRowErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kagura_scheduler_row_errors",
	Help: "Number of due cases which failed to resolve during a scan",
})
