package server

import (
	"sort"
	"sync"
	"time"
)

// maxDurationSamples is the number of latency samples kept per route.
const maxDurationSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Catalog metrics
	listingsTotal       int64
	catalogCorruptTotal int64

	// Stored file metrics
	downloadsTotal      int64
	downloadBytesTotal  int64
	downloadErrorsTotal int64

	// Explanation metrics
	explainTotal         int64
	explainErrorsTotal   int64
	explainDurationTotal time.Duration

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64

	requestDurations map[string][]float64 // route -> durations in ms
	startTime        time.Time
}

// NewMetrics returns zeroed counters with the uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{
		requestDurations: make(map[string][]float64),
		startTime:        time.Now(),
	}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records an upload error
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordListing records a served /books request
func (m *Metrics) RecordListing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listingsTotal++
}

// RecordCatalogCorrupt records a malformed catalog seen while listing
func (m *Metrics) RecordCatalogCorrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogCorruptTotal++
}

// RecordDownload records a served stored file
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// RecordDownloadError records a storage failure while serving a file
func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordExplain records a successful explanation
func (m *Metrics) RecordExplain(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainTotal++
	m.explainDurationTotal += duration
}

// RecordExplainError records a failed explanation
func (m *Metrics) RecordExplainError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainErrorsTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// RecordRequestDuration keeps the latest latency samples for route.
func (m *Metrics) RecordRequestDuration(route string, durationMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	durations := append(m.requestDurations[route], durationMs)
	if len(durations) > maxDurationSamples {
		durations = durations[len(durations)-maxDurationSamples:]
	}
	m.requestDurations[route] = durations
}

// DurationPercentiles returns p50, p95 and p99 latency for route in ms.
func (m *Metrics) DurationPercentiles(route string) (p50, p95, p99 float64) {
	m.mu.RLock()
	durations := m.requestDurations[route]
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)

	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]
	return
}

// Routes returns the routes with latency samples, sorted.
func (m *Metrics) Routes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]string, 0, len(m.requestDurations))
	for r := range m.requestDurations {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		ListingsTotal:       m.listingsTotal,
		CatalogCorruptTotal: m.catalogCorruptTotal,
		DownloadsTotal:      m.downloadsTotal,
		DownloadBytesTotal:  m.downloadBytesTotal,
		DownloadErrorsTotal: m.downloadErrorsTotal,
		ExplainTotal:        m.explainTotal,
		ExplainErrorsTotal:  m.explainErrorsTotal,
		ExplainAvgDuration:  avgDuration(m.explainDurationTotal, m.explainTotal),
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Upload metrics
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	// Catalog metrics
	ListingsTotal       int64 `json:"listings_total"`
	CatalogCorruptTotal int64 `json:"catalog_corrupt_total"`

	// Stored file metrics
	DownloadsTotal      int64 `json:"downloads_total"`
	DownloadBytesTotal  int64 `json:"download_bytes_total"`
	DownloadErrorsTotal int64 `json:"download_errors_total"`

	// Explanation metrics
	ExplainTotal       int64   `json:"explain_total"`
	ExplainErrorsTotal int64   `json:"explain_errors_total"`
	ExplainAvgDuration float64 `json:"explain_avg_duration_ms"`

	// System metrics
	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors5xx int64   `json:"request_errors_5xx"`
	RequestErrors4xx int64   `json:"request_errors_4xx"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
