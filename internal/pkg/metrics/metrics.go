package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約の試行数（status: success, seat_unavailable, coupon_rejected, conflict, error）
	ReservationsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 注文の状態遷移数（to: PAID, CANCELLED, COMPLETED, REFUNDED）
	OrderTransitionsTotal *prometheus.CounterVec

	// 期限切れ掃除で処理した注文数（result: cancelled, completed, failed）
	ReaperOrdersTotal *prometheus.CounterVec

	// 期限切れ掃除1サイクルの所要時間
	ReaperCycleDuration prometheus.Histogram

	// クーポン取得の試行数（status: success, quota_exceeded, limit_reached, error）
	CouponClaimsTotal *prometheus.CounterVec

	// 通知の送信結果（status: published, failed）
	NotificationsTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of seat reservation attempts",
			},
			[]string{"status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		OrderTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_order_transitions_total",
				Help: "Total number of ticket order status transitions",
			},
			[]string{"to"},
		),
		ReaperOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_reaper_orders_total",
				Help: "Orders processed by the reservation expiry reaper",
			},
			[]string{"result"},
		),
		ReaperCycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reservation_reaper_cycle_duration_seconds",
				Help:    "Duration of one reservation expiry reaper cycle",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		CouponClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_claims_total",
				Help: "Total number of coupon claim attempts",
			},
			[]string{"status"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_notifications_total",
				Help: "Order notifications handed to the message broker",
			},
			[]string{"status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.DistributedLockDuration,
		m.OrderTransitionsTotal,
		m.ReaperOrdersTotal,
		m.ReaperCycleDuration,
		m.CouponClaimsTotal,
		m.NotificationsTotal,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
