package handler

import (
	"net/http"
	"sync"

	config "sparksales-api/configs"
	"sparksales-api/internal/app"
	"sparksales-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

var (
	engine  *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg, err := config.LoadConfig()
		if err != nil {
			initErr = err
			return
		}
		log := logger.New(cfg).WithField("entry", "serverless")

		application, err := app.New(cfg, log)
		if err != nil {
			initErr = err
			return
		}
		log.Info("[setupApp] Gin application initialized")
		engine = application.Router
	})
	return engine, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	router, err := setupApp()
	if err != nil {
		http.Error(w, `{"error":"service is not configured"}`, http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
