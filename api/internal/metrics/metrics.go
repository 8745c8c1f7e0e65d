package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CipherOperations counts field cipher calls by operation and outcome.
	CipherOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_cipher_operations_total",
			Help: "Total number of field cipher operations",
		},
		[]string{"operation", "outcome"},
	)
	// DecryptFallbacks counts fields left as-is because decryption failed during a read.
	DecryptFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_decrypt_fallbacks_total",
			Help: "Registered fields whose stored value could not be decrypted on read",
		},
		[]string{"entity_type", "field"},
	)
	// MigrationRows counts rows processed by migrate/rotate runs.
	MigrationRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_migration_rows_total",
			Help: "Rows processed by encryption migration runs",
		},
		[]string{"entity_type", "mode", "outcome"},
	)
	// RequestTotal counts admin HTTP requests.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
