package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envvault_operations_total",
		Help: "Vault operations by name and result.",
	}, []string{"op", "result"})

	secretsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "envvault_secrets",
		Help: "Number of secrets in the vault.",
	})

	shellSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envvault_shell_sync_total",
		Help: "Shell file syncs by result.",
	}, []string{"result"})

	storageAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "envvault_storage_available",
		Help: "Storage status: 0=unavailable, 1=open.",
	})
)

func init() {
	prometheus.MustRegister(operationsTotal, secretsStored, shellSyncTotal, storageAvailable)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
