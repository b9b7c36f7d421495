package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	OrdersRestedTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orders_rested_total", Help: "Orders added to the book by side"}, []string{"side"})
	OrdersMatchedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_matched_total", Help: "Crossing orders fully filled"})
	OrdersRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_rejected_total", Help: "Crossing orders rejected for insufficient liquidity"})
	TradesTotal         = prometheus.NewCounter(prometheus.CounterOpts{Name: "trades_total", Help: "Fill records appended to the trade log"})
	VolumeMatchedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "volume_matched_total", Help: "Total quantity matched"})
	BookLevels          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_levels", Help: "Resting price levels by side"}, []string{"side"})
	BookVolume          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_volume", Help: "Resting quantity by side"}, []string{"side"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		OrdersRestedTotal, OrdersMatchedTotal, OrdersRejectedTotal,
		TradesTotal, VolumeMatchedTotal, BookLevels, BookVolume,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
