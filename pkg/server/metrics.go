package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/azzurro/pkg/coordinator"
	"github.com/raterudder/azzurro/pkg/sensor"
	"github.com/raterudder/azzurro/pkg/types"
)

// hubCollector exports the state of every device at scrape time.
type hubCollector struct {
	hub *coordinator.Hub

	infoDesc        *prometheus.Desc
	availableDesc   *prometheus.Desc
	lastRefreshDesc *prometheus.Desc
	fetchesDesc     *prometheus.Desc
	statusDesc      *prometheus.Desc
	sensorDesc      *prometheus.Desc
	assumedDesc     *prometheus.Desc
}

var _ prometheus.Collector = (*hubCollector)(nil)

func newHubCollector(h *coordinator.Hub) *hubCollector {
	return &hubCollector{
		hub:             h,
		infoDesc:        prometheus.NewDesc("azzurro_device_info", "Registered device and its display name", []string{"thing", "name"}, nil),
		availableDesc:   prometheus.NewDesc("azzurro_device_available", "Whether the last refresh of the device succeeded", []string{"thing"}, nil),
		lastRefreshDesc: prometheus.NewDesc("azzurro_device_last_refresh_timestamp_seconds", "Unix time of the last refresh", []string{"thing"}, nil),
		fetchesDesc:     prometheus.NewDesc("azzurro_portal_fetches_total", "Portal fetches by outcome", []string{"thing", "class"}, nil),
		statusDesc:      prometheus.NewDesc("azzurro_device_status", "Derived operating status of the device", []string{"thing", "status"}, nil),
		sensorDesc:      prometheus.NewDesc("azzurro_sensor_value", "Resolved value of a numeric sensor", []string{"thing", "sensor", "unit"}, nil),
		assumedDesc:     prometheus.NewDesc("azzurro_sensor_assumed", "Whether the sensor serves a cached value", []string{"thing", "sensor"}, nil),
	}
}

func (c *hubCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.availableDesc
	ch <- c.lastRefreshDesc
	ch <- c.fetchesDesc
	ch <- c.statusDesc
	ch <- c.sensorDesc
	ch <- c.assumedDesc
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *hubCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	for _, co := range c.hub.List() {
		device := co.Device()
		thing := device.ThingKey

		ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1, thing, device.DisplayName())
		ch <- prometheus.MustNewConstMetric(c.availableDesc, prometheus.GaugeValue, boolToFloat(co.LastUpdateSuccess()), thing)
		if last := co.LastRefresh(); !last.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.lastRefreshDesc, prometheus.GaugeValue, float64(last.UnixNano())/1e9, thing)
		}
		for class, n := range co.Fetches() {
			ch <- prometheus.MustNewConstMetric(c.fetchesDesc, prometheus.CounterValue, float64(n), thing, class.String())
		}

		for _, r := range co.Read(ctx) {
			if r.Key == sensor.StatusKey {
				if s, ok := r.Value.(string); ok {
					ch <- prometheus.MustNewConstMetric(c.statusDesc, prometheus.GaugeValue, 1, thing, s)
				}
				continue
			}
			v, ok := types.Float(r.Value)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.sensorDesc, prometheus.GaugeValue, v, thing, r.Key, r.Unit)
			ch <- prometheus.MustNewConstMetric(c.assumedDesc, prometheus.GaugeValue, boolToFloat(r.Assumed), thing, r.Key)
		}
	}
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
