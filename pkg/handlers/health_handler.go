package handlers

import (
	"net/http"
	"time"

	"sparksales-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler はサービスの稼働状態とモデルの読み込み状態を返します。
type HealthHandler struct {
	adapter *services.ForecastAdapter
}

// NewHealthHandler は新しいHealthHandlerを生成します。
func NewHealthHandler(adapter *services.ForecastAdapter) *HealthHandler {
	return &HealthHandler{adapter: adapter}
}

// Home ルートへのアクセスに稼働メッセージを返す
func (h *HealthHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "API is running",
		"message": "SparkSales AI backend running",
	})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status は各モデルが読み込まれているかを返します。
func (h *HealthHandler) Status(c *gin.Context) {
	regressor := gin.H{"loaded": h.adapter.HasRegressor()}
	if h.adapter.HasRegressor() {
		regressor["name"] = h.adapter.RegressorName()
		regressor["features"] = h.adapter.ExpectedFeatures()
	}

	forecaster := gin.H{"loaded": h.adapter.HasForecaster()}
	if name, last := h.adapter.ForecasterInfo(); h.adapter.HasForecaster() {
		forecaster["name"] = name
		forecaster["last_date"] = last.Format(time.DateOnly)
	}

	c.JSON(http.StatusOK, gin.H{
		"regressor":  regressor,
		"forecaster": forecaster,
	})
}
