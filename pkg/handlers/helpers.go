package handlers

import (
	"errors"
	"net/http"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError は型付きエラーをステータスコードと {"error": ...} に変換して返します。
// 5xx は内部の詳細を隠してログにだけ残します。
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, message := apperrors.Public(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
		message = "uploaded file is too large"
	}

	entry := log.WithError(err).WithFields(map[string]interface{}{
		"path":       c.FullPath(),
		"status":     status,
		"request_id": c.GetString(requestIDKey),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("リクエストの処理に失敗しました")
	} else {
		entry.Info("リクエストを拒否しました")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
