package gradesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gradesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wims_lti_grades_sent_total",
		Help: "Number of grades accepted by an LMS outcomes endpoint.",
	})

	gradesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wims_lti_grades_failed_total",
		Help: "Number of grade deliveries rejected or failed.",
	})

	syncRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wims_lti_sync_runs_total",
		Help: "Number of grade synchronization runs started.",
	})

	classesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wims_lti_classes_reconciled_total",
		Help: "Number of class mappings deleted because the class disappeared from its WIMS server.",
	})
)
