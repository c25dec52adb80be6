package client

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 记录客户端运行期的关键指标（用于监控与调试）
// 使用独立 Registry，测试中可以创建多个实例
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived    prometheus.Counter // 收到的入站帧
	FramesMalformed   prometheus.Counter // JSON 解析失败被丢弃的帧
	FramesUnknown     prometheus.Counter // 未知 type 被忽略的帧
	SendsTotal        prometheus.Counter // 成功写出的出站消息
	SendsDropped      prometheus.Counter // 连接未就绪时丢弃的出站消息
	ReconnectAttempts prometheus.Counter // 已调度的重连次数
	FrameSeconds      prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "frames_received_total",
			Help:      "Inbound websocket frames handed to the router.",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "frames_malformed_total",
			Help:      "Inbound frames dropped because they were not valid JSON.",
		}),
		FramesUnknown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "frames_unknown_total",
			Help:      "Inbound frames ignored because of an unknown type tag.",
		}),
		SendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "sends_total",
			Help:      "Outbound messages written to the socket.",
		}),
		SendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "sends_dropped_total",
			Help:      "Outbound messages dropped while the socket was not ready.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realm_client",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts scheduled.",
		}),
		FrameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "realm_client",
			Name:      "frame_duration_seconds",
			Help:      "Time spent in one loop frame.",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.032},
		}),
	}
	m.registry.MustRegister(
		m.FramesReceived,
		m.FramesMalformed,
		m.FramesUnknown,
		m.SendsTotal,
		m.SendsDropped,
		m.ReconnectAttempts,
		m.FrameSeconds,
	)
	return m
}

// AddFrame 记录一帧耗时
func (m *Metrics) AddFrame(d time.Duration) {
	m.FrameSeconds.Observe(d.Seconds())
}

// Handler 输出 Prometheus 文本格式
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
