// Package app はサーバー・サーバーレス関数・CLIで共通の初期化を行います。
package app

import (
	"net/http"

	config "sparksales-api/configs"
	"sparksales-api/pkg/handlers"
	"sparksales-api/pkg/logger"
	"sparksales-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App は起動時に一度だけ組み立てる依存関係一式です。
// モデルは読み取り専用で、全リクエストから共有されます。
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Registry   *prometheus.Registry
	Monitoring *services.MonitoringService
	Forecasts  *services.ForecastService
	Reports    *services.ReportService
	Router     *gin.Engine
}

// New 設定に従ってモデルを読み込み、アプリを組み立てる。
// モデルが読み込めない場合は警告を出して起動を続け、該当エンドポイントは503を返す
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	regressor, forecaster := LoadModels(cfg, log)
	return NewWithModels(cfg, log, regressor, forecaster)
}

// LoadModels 回帰モデルと時系列モデルを読み込む。失敗したものは nil
func LoadModels(cfg *config.Config, log *logger.Logger) (services.Regressor, services.SeriesForecaster) {
	var regressor services.Regressor
	if r, err := services.LoadRegressor(cfg.RegressorModelPath); err != nil {
		log.WithError(err).WithField("path", cfg.RegressorModelPath).Warn("回帰モデルを読み込めませんでした")
	} else {
		regressor = r
		log.WithFields(map[string]interface{}{
			"model":    r.Name(),
			"features": r.FeatureNames(),
		}).Info("回帰モデルを読み込みました")
	}

	var forecaster services.SeriesForecaster
	spec, err := cfg.Sarima()
	if err != nil {
		log.WithError(err).Warn("時系列モデルの次数が不正です")
		return regressor, nil
	}
	order := services.SarimaOrder{
		P: spec.P, D: spec.D, Q: spec.Q,
		SP: spec.SP, SD: spec.SD, SQ: spec.SQ,
		Period: spec.Period,
	}
	artifact, err := services.LoadSeriesArtifact(cfg.SarimaSeriesPath, log)
	if err != nil {
		log.WithError(err).WithField("path", cfg.SarimaSeriesPath).Warn("時系列モデルの学習データを読み込めませんでした")
		return regressor, nil
	}
	fitted, err := services.FitSarima(artifact, order)
	if err != nil {
		log.WithError(err).WithField("order", order.String()).Warn("時系列モデルを学習できませんでした")
		return regressor, nil
	}
	forecaster = fitted
	log.WithFields(map[string]interface{}{
		"model":        fitted.Name(),
		"observations": fitted.Observations(),
		"last_date":    fitted.LastDate().Format("2006-01-02"),
	}).Info("時系列モデルを学習しました")
	return regressor, forecaster
}

// NewWithModels 読み込み済みのモデルでアプリを組み立てる。テストではスタブを渡す
func NewWithModels(cfg *config.Config, log *logger.Logger, regressor services.Regressor, forecaster services.SeriesForecaster) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	rules, err := config.LoadRuleTable(cfg.InsightRulesPath)
	if err != nil {
		return nil, err
	}
	if cfg.InsightRulesPath != "" {
		log.WithField("path", cfg.InsightRulesPath).Info("インサイトのルールを上書きしました")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	monitoring := services.NewMonitoringService(registry, services.DefaultLogCapacity)
	loc, err := cfg.DashboardLocation()
	if err != nil {
		return nil, err
	}
	monitoring.SetLocation(loc)
	adapter := services.NewForecastAdapter(regressor, forecaster, cfg.MaxForecastSteps)
	forecasts := services.NewForecastService(adapter, rules, cfg.MinCSVRows, monitoring, log)
	reports := services.NewReportService()

	a := &App{
		Config:     cfg,
		Log:        log,
		Registry:   registry,
		Monitoring: monitoring,
		Forecasts:  forecasts,
		Reports:    reports,
	}
	a.Router = a.newRouter()
	return a, nil
}

// newRouter ルーティングとミドルウェアを登録する
func (a *App) newRouter() *gin.Engine {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(handlers.RequestID())
	r.Use(handlers.RequestLogger(a.Log))
	r.Use(a.Monitoring.LoggingMiddleware())
	r.Use(cors.New(corsConfig(a.Config.CORSAllowOrigins)))

	healthHandler := handlers.NewHealthHandler(a.Forecasts.Adapter())
	forecastHandler := handlers.NewForecastHandler(a.Forecasts, a.Reports, a.Config.MaxUploadBytes, a.Log)
	monitoringHandler := handlers.NewMonitoringHandler(a.Monitoring, a.Registry)

	r.GET("/", healthHandler.Home)
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", monitoringHandler.Metrics())

	// 予測API
	r.POST("/forecast", forecastHandler.PredictManual)
	r.POST("/predict/manual", forecastHandler.PredictManual)
	r.POST("/forecast/csv", forecastHandler.PredictCSV)
	r.POST("/forecast/segmented", forecastHandler.PredictSegmented)
	r.GET("/forecast/sarima", forecastHandler.PredictTimeSeries)
	r.POST("/forecast/sarima", forecastHandler.PredictTimeSeries)
	r.POST("/download-report", forecastHandler.DownloadReport)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", healthHandler.Status)

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-Request-Id", "X-Report-Id"}
	return cfg
}

