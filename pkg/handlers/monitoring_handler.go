package handlers

import (
	"net/http"

	"sparksales-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service  *services.MonitoringService
	gatherer prometheus.Gatherer
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
// gatherer が nil の場合 /metrics は空を返します。
func NewMonitoringHandler(service *services.MonitoringService, gatherer prometheus.Gatherer) *MonitoringHandler {
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &MonitoringHandler{
		Service:  service,
		gatherer: gatherer,
	}
}

// periodHours 集計期間のクエリ値を時間数に変換。未知の値は24時間
func periodHours(period string) int {
	switch period {
	case "1h":
		return 1
	case "7d":
		return 24 * 7
	default:
		return 24
	}
}

// GetLogs は集計されたログデータを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	hours := periodHours(c.DefaultQuery("period", "24h"))
	c.JSON(http.StatusOK, h.Service.GetDashboardData(hours))
}

// Metrics は Prometheus 形式でメトリクスを公開します。
func (h *MonitoringHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
