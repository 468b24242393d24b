package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/logger"
	"sparksales-api/pkg/models"
	"sparksales-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// ForecastHandler 売上予測とレポートのハンドラー
type ForecastHandler struct {
	forecasts      *services.ForecastService
	reports        *services.ReportService
	maxUploadBytes int64
	log            *logger.Logger
}

// NewForecastHandler 新しい予測ハンドラーを作成
func NewForecastHandler(forecasts *services.ForecastService, reports *services.ReportService, maxUploadBytes int64, log *logger.Logger) *ForecastHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ForecastHandler{
		forecasts:      forecasts,
		reports:        reports,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// PredictManual 手入力のラグとカレンダー情報から売上を予測
func (h *ForecastHandler) PredictManual(c *gin.Context) {
	var request models.ManualForecastRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, h.log, apperrors.Wrap(apperrors.CodeParse, err, "request body must be a JSON object with numeric fields"))
		return
	}

	resp, err := h.forecasts.Manual(request)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PredictCSV アップロードされたCSVから次期の売上を予測
func (h *ForecastHandler) PredictCSV(c *gin.Context) {
	file, fileName, err := h.uploadedFile(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer file.Close()

	resp, err := h.forecasts.CSV(file, fileName)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PredictSegmented 地域・カテゴリ・サブカテゴリで絞り込んで予測
func (h *ForecastHandler) PredictSegmented(c *gin.Context) {
	file, fileName, err := h.uploadedFile(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer file.Close()

	filter := models.SegmentFilter{
		Region:      c.PostForm("region"),
		Category:    c.PostForm("category"),
		SubCategory: c.PostForm("sub_category"),
	}
	resp, err := h.forecasts.Segmented(file, fileName, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PredictTimeSeries 時系列モデルで steps 日先まで予測（既定は7日）
func (h *ForecastHandler) PredictTimeSeries(c *gin.Context) {
	steps := services.DefaultForecastSteps
	if raw := c.Query("steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, h.log, apperrors.Parse("steps must be an integer, got %q", raw))
			return
		}
		steps = n
	}

	resp, err := h.forecasts.TimeSeries(steps)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadReport CSV予測のレスポンスを受け取り、PDFレポートを返す
func (h *ForecastHandler) DownloadReport(c *gin.Context) {
	var data models.CSVForecastResponse
	if err := c.ShouldBindJSON(&data); err != nil {
		respondError(c, h.log, apperrors.Wrap(apperrors.CodeParse, err, "request body must match the CSV forecast response"))
		return
	}

	var buf bytes.Buffer
	reportID, err := h.reports.Render(&buf, data)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.WithFields(map[string]interface{}{
		"report_id":  reportID,
		"size_bytes": buf.Len(),
	}).Info("PDFレポートを作成しました")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ReportFileName))
	c.Header("X-Report-Id", reportID)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// uploadedFile multipart の file フィールドを取り出す。サイズは maxUploadBytes まで
func (h *ForecastHandler) uploadedFile(c *gin.Context) (multipart.File, string, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", apperrors.Schema("missing required upload field: file")
	}
	return file, header.Filename, nil
}
