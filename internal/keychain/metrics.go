package keychain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opSave     = "save"
	opRetrieve = "retrieve"
	opDelete   = "delete"

	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// operationsTotal counts backend calls made through a Manager.
var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lockwise_keychain_operations_total",
		Help: "Keychain operations by identifier and result",
	},
	[]string{"operation", "identifier", "result"},
)

func observe(op string, id Identifier, result string) {
	operationsTotal.WithLabelValues(op, id.String(), result).Inc()
}
