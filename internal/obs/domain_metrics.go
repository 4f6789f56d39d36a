package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PurchasesTotal counts billing outcomes by result.
	PurchasesTotal *prometheus.CounterVec
	// ChangeReturnedTotal accumulates denomination units paid out as change.
	ChangeReturnedTotal *prometheus.CounterVec
	// InvoiceDeliveriesTotal tracks invoice email dispatch outcomes.
	InvoiceDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PurchasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Count of billing attempts by result.",
		}, []string{"result"})
		ChangeReturnedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_returned_total",
			Help:      "Number of denomination units returned as change.",
		}, []string{"value"})
		InvoiceDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_deliveries_total",
			Help:      "Count of invoice email delivery outcomes.",
		}, []string{"result"})

		registerCollector(reg, PurchasesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PurchasesTotal = v
			}
		})
		registerCollector(reg, ChangeReturnedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ChangeReturnedTotal = v
			}
		})
		registerCollector(reg, InvoiceDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceDeliveriesTotal = v
			}
		})
	})
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(err)
	}
}
