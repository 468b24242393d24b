package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/logger"
	"sparksales-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	colOrderDate   = "order_date"
	colDate        = "date"
	colSales       = "sales"
	colRegion      = "region"
	colCategory    = "category"
	colSubCategory = "sub_category"
)

// dayFirstLayouts 日付は日→月の順で解釈する。年が先頭のISO形式は曖昧さがないので併せて受け付ける
var dayFirstLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"2/Jan/2006",
}

// CsvLoader はアップロードされた表データを SalesFrame に正規化します。
type CsvLoader struct {
	log *logger.Logger
}

// NewCsvLoader 新しいローダーを作成
func NewCsvLoader(log *logger.Logger) *CsvLoader {
	if log == nil {
		log = logger.Nop()
	}
	return &CsvLoader{log: log}
}

// Load はCSVまたはXLSXを読み込みます。形式はファイル名で判定します。
func (l *CsvLoader) Load(r io.Reader, fileName string) (*models.SalesFrame, models.LoadReport, error) {
	rows, serialDates, err := readRows(r, fileName)
	if err != nil {
		return nil, models.LoadReport{}, err
	}
	frame, report, err := l.loadRows(rows, serialDates)
	if err != nil {
		return nil, report, err
	}
	l.log.WithFields(map[string]interface{}{
		"file":             fileName,
		"total_rows":       report.TotalRows,
		"kept_rows":        report.KeptRows,
		"bad_date_rows":    report.BadDateRows,
		"bad_sales_rows":   report.BadSalesRows,
		"date_column":      frame.DateColumn,
		"segments_present": frame.HasSegments,
	}).Debug("アップロードデータを正規化しました")
	return frame, report, nil
}

// LoadRows 先頭行をヘッダーとする分割済みの表を正規化する
func (l *CsvLoader) LoadRows(rows [][]string) (*models.SalesFrame, models.LoadReport, error) {
	return l.loadRows(rows, false)
}

// loadRows serialDates が true なら数値の日付セルをExcelのシリアル値として扱う
func (l *CsvLoader) loadRows(rows [][]string, serialDates bool) (*models.SalesFrame, models.LoadReport, error) {
	var report models.LoadReport
	if len(rows) == 0 {
		return nil, report, apperrors.Schema("file is empty: a header row with a date column and a %s column is required", colSales)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeColumn(h)
	}

	dateIdx, dateCol := findDateColumn(header)
	salesIdx := indexOf(header, colSales)
	var missing []string
	if dateIdx == -1 {
		missing = append(missing, "date")
	}
	if salesIdx == -1 {
		missing = append(missing, colSales)
	}
	if len(missing) > 0 {
		return nil, report, apperrors.Schema("missing required column: %s (found: %s)",
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}

	regionIdx := indexOf(header, colRegion)
	categoryIdx := indexOf(header, colCategory)
	subIdx := indexOf(header, colSubCategory)

	frame := &models.SalesFrame{
		DateColumn:  dateCol,
		HasSegments: regionIdx != -1 && categoryIdx != -1 && subIdx != -1,
		Columns:     header,
	}

	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		report.TotalRows++

		date, err := parseDate(cell(row, dateIdx), serialDates)
		if err != nil {
			report.BadDateRows++
			continue
		}
		sales, err := parseSales(cell(row, salesIdx))
		if err != nil {
			report.BadSalesRows++
			continue
		}

		frame.Records = append(frame.Records, models.SalesRecord{
			Date:        date,
			Sales:       sales,
			Region:      strings.TrimSpace(cell(row, regionIdx)),
			Category:    strings.TrimSpace(cell(row, categoryIdx)),
			SubCategory: strings.TrimSpace(cell(row, subIdx)),
		})
	}

	sort.SliceStable(frame.Records, func(i, j int) bool {
		return frame.Records[i].Date.Before(frame.Records[j].Date)
	})
	report.KeptRows = len(frame.Records)
	return frame, report, nil
}

// readRows 表を文字列の行で返す。XLSXは書式を適用しない生の値で読むため、日付セルはシリアル値になる
func readRows(r io.Reader, fileName string) ([][]string, bool, error) {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, false, apperrors.Wrap(apperrors.CodeParse, err, "could not read the Excel workbook")
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, false, apperrors.Wrap(apperrors.CodeParse, err, "could not read the first worksheet")
		}
		return rows, true, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeParse, err, "could not read the uploaded file")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeParse, err, fmt.Sprintf("could not parse CSV: %v", err))
	}
	return rows, false, nil
}

// normalizeColumn 前後の空白を除き小文字化、空白とハイフンをアンダースコアに置換
func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// findDateColumn order_date → date → 名前に"date"を含む最初の列、の順で探す
func findDateColumn(header []string) (int, string) {
	for _, want := range []string{colOrderDate, colDate} {
		if i := indexOf(header, want); i != -1 {
			return i, want
		}
	}
	for i, h := range header {
		if strings.Contains(h, "date") {
			return i, h
		}
	}
	return -1, ""
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseDate Excelのシリアル値（serial が true の場合）か、日→月の順の文字列を日付にする
func parseDate(raw string, serial bool) (time.Time, error) {
	if serial {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			t, err := excelize.ExcelDateToTime(v, false)
			if err != nil || v < 1 {
				return time.Time{}, apperrors.Parse("invalid Excel date serial %q", raw)
			}
			return truncateDay(t), nil
		}
	}
	return parseDayFirst(raw)
}

// parseDayFirst 日→月の順で日付を解釈する。時刻部分は無視
func parseDayFirst(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, apperrors.Parse("empty date")
	}
	candidates := []string{s}
	if i := strings.LastIndex(s, " "); i > 0 && strings.Contains(s[i:], ":") {
		candidates = append(candidates, strings.TrimSpace(s[:i]))
	}
	if i := strings.IndexAny(s, " T"); i > 0 {
		candidates = append(candidates, s[:i])
	}
	for _, c := range candidates {
		for _, layout := range dayFirstLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, apperrors.Parse("unparseable date %q", raw)
}

func parseSales(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, apperrors.Parse("empty sales value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeParse, err, fmt.Sprintf("invalid sales value %q", raw))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, apperrors.Parse("sales value out of range %q", raw)
	}
	return v, nil
}
