// prometheus.go - Prometheus metrics exporter
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// PrometheusExporter renders Metrics in the Prometheus text format.
type PrometheusExporter struct {
	metrics *Metrics
	version string
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(m *Metrics, version string) *PrometheusExporter {
	if version == "" {
		version = "dev"
	}
	return &PrometheusExporter{metrics: m, version: version}
}

func writeMetric(b *strings.Builder, name, kind, help string, value any) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(b, "%s %v\n\n", name, value)
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := p.metrics.Snapshot()

		var output strings.Builder

		output.WriteString("# HELP bbr_info Application version info\n")
		output.WriteString("# TYPE bbr_info gauge\n")
		fmt.Fprintf(&output, "bbr_info{version=\"%s\"} 1\n\n", prometheusLabel(p.version))

		writeMetric(&output, "bbr_requests_total", "counter", "Total number of HTTP requests", snapshot.RequestsTotal)
		writeMetric(&output, "bbr_request_errors_4xx_total", "counter", "HTTP responses with a 4xx status", snapshot.RequestErrors4xx)
		writeMetric(&output, "bbr_request_errors_5xx_total", "counter", "HTTP responses with a 5xx status", snapshot.RequestErrors5xx)

		writeMetric(&output, "bbr_uploads_total", "counter", "Total number of book uploads", snapshot.UploadsTotal)
		writeMetric(&output, "bbr_upload_bytes_total", "counter", "Total bytes of uploaded files", snapshot.UploadBytesTotal)
		writeMetric(&output, "bbr_upload_errors_total", "counter", "Total number of failed uploads", snapshot.UploadErrorsTotal)

		writeMetric(&output, "bbr_listings_total", "counter", "Total number of catalog listings", snapshot.ListingsTotal)
		writeMetric(&output, "bbr_catalog_corrupt_total", "counter", "Listings that found a malformed catalog", snapshot.CatalogCorruptTotal)

		writeMetric(&output, "bbr_downloads_total", "counter", "Total number of stored files served", snapshot.DownloadsTotal)
		writeMetric(&output, "bbr_download_bytes_total", "counter", "Total bytes of stored files served", snapshot.DownloadBytesTotal)

		writeMetric(&output, "bbr_explanations_total", "counter", "Total number of successful explanations", snapshot.ExplainTotal)
		writeMetric(&output, "bbr_explanation_errors_total", "counter", "Total number of failed explanations", snapshot.ExplainErrorsTotal)

		routes := p.metrics.Routes()
		if len(routes) > 0 {
			output.WriteString("# HELP bbr_request_duration_ms Request latency quantiles over recent samples\n")
			output.WriteString("# TYPE bbr_request_duration_ms summary\n")
			for _, route := range routes {
				p50, p95, p99 := p.metrics.DurationPercentiles(route)
				label := prometheusLabel(route)
				fmt.Fprintf(&output, "bbr_request_duration_ms{route=\"%s\",quantile=\"0.5\"} %.3f\n", label, p50)
				fmt.Fprintf(&output, "bbr_request_duration_ms{route=\"%s\",quantile=\"0.95\"} %.3f\n", label, p95)
				fmt.Fprintf(&output, "bbr_request_duration_ms{route=\"%s\",quantile=\"0.99\"} %.3f\n", label, p99)
			}
			output.WriteString("\n")
		}

		fmt.Fprintf(&output, "# HELP bbr_uptime_seconds Application uptime in seconds\n# TYPE bbr_uptime_seconds counter\nbbr_uptime_seconds %.0f\n", snapshot.UptimeSeconds)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	}
}

// prometheusLabel escapes quotes and backslashes in a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
