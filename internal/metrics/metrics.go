// Package metrics 定义服务的 Prometheus 指标
// 所有记录方法都允许 nil 接收者，未启用指标时调用方无需判空
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sharedrop"

// 回收触发来源
const (
	TriggerAccess = "access" // 访问时发现已失效
	TriggerSweep  = "sweep"  // 批量扫描
	TriggerOwner  = "owner"  // 所有者主动删除
)

// Metrics 服务指标集合
type Metrics struct {
	UploadsTotal      *prometheus.CounterVec   // sharedrop_uploads_total{result}
	DownloadsTotal    *prometheus.CounterVec   // sharedrop_downloads_total{result}
	ReclaimsTotal     *prometheus.CounterVec   // sharedrop_reclaims_total{trigger}
	BytesUploaded     prometheus.Counter       // sharedrop_bytes_uploaded_total
	BytesServed       prometheus.Counter       // sharedrop_bytes_served_total
	SweepDuration     prometheus.Histogram     // sharedrop_sweep_duration_seconds
	HTTPRequestsTotal *prometheus.CounterVec   // sharedrop_http_requests_total{method,route,status}
	HTTPDuration      *prometheus.HistogramVec // sharedrop_http_request_duration_seconds{method,route}
}

// New 在给定注册器上创建并注册全部指标
// 参数:
//   - registry: 注册器，为 nil 时使用 prometheus.DefaultRegisterer
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total uploads by result",
		}, []string{"result"}),

		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total download attempts by result",
		}, []string{"result"}),

		ReclaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaims_total",
			Help:      "Total shares reclaimed by trigger",
		}, []string{"trigger"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes accepted by uploads",
		}),

		BytesServed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_served_total",
			Help:      "Total bytes streamed to downloaders",
		}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reclamation sweep passes",
			Buckets:   prometheus.DefBuckets,
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordUpload 记录上传结果
func (m *Metrics) RecordUpload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.BytesUploaded.Add(float64(bytes))
	}
}

// RecordDownload 记录下载结果
func (m *Metrics) RecordDownload(result string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result).Inc()
}

// RecordServed 记录实际传输给下载方的字节数
func (m *Metrics) RecordServed(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.BytesServed.Add(float64(bytes))
}

// RecordReclaim 记录一次回收
func (m *Metrics) RecordReclaim(trigger string) {
	if m == nil {
		return
	}
	m.ReclaimsTotal.WithLabelValues(trigger).Inc()
}

// ObserveSweep 记录一次扫描耗时
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

// RecordHTTP 记录一次HTTP请求
func (m *Metrics) RecordHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
