package services

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLogCapacity リクエストログを保持する最大件数
const DefaultLogCapacity = 10000

// unmatchedRoute ルートに一致しなかったリクエストのメトリクス用ラベル
const unmatchedRoute = "unmatched"

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
	RequestID    string        `json:"requestId,omitempty"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
// ログは固定長のリングバッファに保持し、同時に Prometheus のメトリクスも更新します。
type MonitoringService struct {
	mu    sync.RWMutex
	logs  []LogEntry
	next  int
	full  bool
	loc   *time.Location
	now   func() time.Time
	stats *requestMetrics
}

type requestMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	pipelines *prometheus.CounterVec
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
// reg が nil の場合はメトリクスを登録しません。
func NewMonitoringService(reg prometheus.Registerer, capacity int) *MonitoringService {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &MonitoringService{
		logs:  make([]LogEntry, capacity),
		loc:   time.UTC,
		now:   time.Now,
		stats: newRequestMetrics(reg),
	}
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	if reg == nil {
		return nil
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	pipelines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_pipeline_total",
		Help: "Forecast pipeline runs by pipeline and outcome.",
	}, []string{"pipeline", "outcome"})
	reg.MustRegister(requests, latency, pipelines)
	return &requestMetrics{requests: requests, latency: latency, pipelines: pipelines}
}

// SetLocation ダッシュボードの時間バケットに使うタイムゾーンを設定
func (s *MonitoringService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// LogRequest はリクエストを記録します。容量を超えた場合は古いものから上書きします。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.logRequest(entry, entry.Path)
}

// logRequest route はメトリクスの path ラベル。リングバッファには entry.Path を残す
func (s *MonitoringService) logRequest(entry LogEntry, route string) {
	s.mu.Lock()
	s.logs[s.next] = entry
	s.next = (s.next + 1) % len(s.logs)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()

	if s.stats != nil {
		status := strconv.Itoa(entry.StatusCode)
		s.stats.requests.WithLabelValues(entry.Method, route, status).Inc()
		s.stats.latency.WithLabelValues(entry.Method, route).Observe(entry.ResponseTime.Seconds())
	}
}

// RecordPipeline 予測パイプラインの実行結果を記録
func (s *MonitoringService) RecordPipeline(pipeline, outcome string) {
	if s == nil || s.stats == nil {
		return
	}
	s.stats.pipelines.WithLabelValues(pipeline, outcome).Inc()
}

// Entries 保持しているログを古い順に返す
func (s *MonitoringService) Entries() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *MonitoringService) snapshot() []LogEntry {
	if !s.full {
		return append([]LogEntry(nil), s.logs[:s.next]...)
	}
	out := make([]LogEntry, 0, len(s.logs))
	out = append(out, s.logs[s.next:]...)
	return append(out, s.logs[:s.next]...)
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// モニタリング系のパスは記録しない
		route := c.FullPath()
		path := route
		if route == "" {
			route = unmatchedRoute
			path = c.Request.URL.Path
		}
		if strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}

		s.logRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
			RequestID:    c.GetString(RequestIDKey),
		}, route)
	}
}

// RequestIDKey リクエストIDを gin.Context に保存するキー
const RequestIDKey = "request_id"

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}
	s.mu.RLock()
	entries := s.snapshot()
	s.mu.RUnlock()

	now := s.now().In(s.loc)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, e := range entries {
		if e.Timestamp.After(since) {
			filtered = append(filtered, e)
		}
	}

	// requestsOverTime の集計
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[string]int, periodHours)
	for i := 0; i < periodHours; i++ {
		target := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[target.Format(time.RFC3339)] = i
		requestsOverTime[i] = map[string]interface{}{"time": target.Format("01-02 15:00"), "requests": 0}
	}
	for _, e := range filtered {
		key := e.Timestamp.In(s.loc).Truncate(time.Hour).Format(time.RFC3339)
		if i, ok := bucketIndex[key]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}
	}

	endpoints := make(map[string]int)
	for _, e := range filtered {
		endpoints[e.Path]++
	}

	statusNames := []string{"2xx Success", "4xx Client Error", "5xx Server Error"}
	statusCounts := make(map[string]int, len(statusNames))
	for _, e := range filtered {
		switch {
		case e.StatusCode >= 200 && e.StatusCode < 300:
			statusCounts[statusNames[0]]++
		case e.StatusCode >= 400 && e.StatusCode < 500:
			statusCounts[statusNames[1]]++
		case e.StatusCode >= 500:
			statusCounts[statusNames[2]]++
		}
	}
	statusCodes := make([]map[string]interface{}, 0, len(statusNames))
	for _, name := range statusNames {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusCounts[name]})
	}

	// avgResponseTimes の集計（ミリ秒）
	sumByPath := make(map[string]time.Duration)
	countByPath := make(map[string]int)
	for _, e := range filtered {
		sumByPath[e.Path] += e.ResponseTime
		countByPath[e.Path]++
	}
	paths := make([]string, 0, len(sumByPath))
	for p := range sumByPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := sumByPath[p].Milliseconds() / int64(countByPath[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	// 直近の5xxエラー（新しい順に最大10件）
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
	}
}
