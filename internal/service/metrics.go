package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

var ledgerOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inventory_ledger_operations_total",
		Help: "Cart, checkout and stock operations by outcome",
	},
	[]string{"operation", "result"},
)

func observe(operation string, err error) {
	ledgerOperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if apperrors.HTTPStatus(err) < 500 {
		return "rejected"
	}
	return "error"
}
