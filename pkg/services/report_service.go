package services

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"
)

const (
	reportTitle      = "SparkSales AI - Business Intelligence Report"
	reportDisclaimer = "Disclaimer: Predictions are AI-generated and based on historical data. Actual results may vary."
	// ReportFileName ダウンロード時のファイル名
	ReportFileName = "Sales_report.pdf"

	pageMargin  = 18.0
	chartWidth  = 174.0
	chartHeight = 62.0
)

type rgb struct{ r, g, b int }

var (
	colorBlue   = rgb{31, 119, 180}
	colorOrange = rgb{255, 127, 14}
	colorGreen  = rgb{44, 160, 44}
	colorRed    = rgb{214, 39, 40}
	colorGrid   = rgb{220, 220, 220}
	colorMuted  = rgb{102, 102, 102}
)

// ReportService はCSV予測のレスポンスからPDFレポートを作成します。
// グラフはPDFの図形で描画するため、一時ファイルは作りません。
type ReportService struct {
	now func() time.Time
}

// NewReportService 新しいレポートサービスを作成
func NewReportService() *ReportService {
	return &ReportService{now: time.Now}
}

// Render はレポートを w に書き出し、レポートIDを返します。
func (s *ReportService) Render(w io.Writer, data models.CSVForecastResponse) (string, error) {
	trend := data.Trend
	if len(trend.Sales) != len(trend.Dates) {
		return "", apperrors.Schema("trend.dates and trend.sales must have the same length (%d != %d)", len(trend.Dates), len(trend.Sales))
	}
	if len(trend.Growth) > 0 && len(trend.Growth) != len(trend.Dates) {
		return "", apperrors.Schema("trend.growth must have one value per date (%d != %d)", len(trend.Growth), len(trend.Dates))
	}

	reportID := uuid.NewString()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(reportTitle, false)
	pdf.SetSubject("report "+reportID, false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(0, 5, reportDisclaimer, "", 0, "L", false, 0, "")
	})

	data = encodeText(pdf.UnicodeTranslatorFromDescriptor(""), data)
	s.summaryPage(pdf, data)
	if len(trend.Dates) > 1 {
		s.dashboardPage(pdf, trend)
	}
	s.performancePage(pdf, data.Kpis)

	if err := pdf.Error(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "could not build the PDF report")
	}
	if err := pdf.Output(w); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "could not write the PDF report")
	}
	return reportID, nil
}

// encodeText 利用者が送った文字列をコアフォントの cp1252 に変換する
func encodeText(tr func(string) string, data models.CSVForecastResponse) models.CSVForecastResponse {
	data.ModelUsed = tr(data.ModelUsed)
	insights := make([]string, len(data.Insights))
	for i, text := range data.Insights {
		insights[i] = tr(text)
	}
	data.Insights = insights
	dates := make([]string, len(data.Trend.Dates))
	for i, d := range data.Trend.Dates {
		dates[i] = tr(d)
	}
	data.Trend.Dates = dates
	return data
}

func (s *ReportService) summaryPage(pdf *fpdf.Fpdf, data models.CSVForecastResponse) {
	k := data.Kpis
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 9, reportTitle, "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(colorMuted.r, colorMuted.g, colorMuted.b)
	pdf.CellFormat(0, 6, "Generated on: "+s.now().Format("02 January 2006, 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	section(pdf, "Executive Summary")
	body(pdf, "This report evaluates historical sales performance and short-term demand dynamics. "+
		"Time-series aggregation and a trained regression model are applied to expose trends, "+
		"seasonal behaviour and demand variability across periods.")
	body(pdf, fmt.Sprintf("The analysis shows an average sales volume of %s units, while the most recent period "+
		"recorded %s units. Monthly aggregation highlights directional growth, and the rolling average "+
		"smooths short-term fluctuations to expose the underlying demand signal.",
		formatRounded(k.AvgSales, 2), formatRounded(k.LatestSales, 2)))
	if data.ModelUsed != "" {
		body(pdf, fmt.Sprintf("The next-period forecast from the %s is %s units.", data.ModelUsed, formatRounded(data.PredictedSales, 2)))
	}

	section(pdf, "Key Performance Indicators")
	bullets(pdf, []string{
		"Average Sales: " + formatRounded(k.AvgSales, 2),
		"Latest Sales: " + formatRounded(k.LatestSales, 2),
		"Sales Growth: " + formatRounded(k.GrowthPct, 2) + "%",
	})

	section(pdf, "Actionable Business Insights")
	if len(data.Insights) == 0 {
		body(pdf, "No insights were generated for this dataset.")
		return
	}
	bullets(pdf, data.Insights)
}

func (s *ReportService) dashboardPage(pdf *fpdf.Fpdf, trend models.TrendSeries) {
	pdf.AddPage()
	section(pdf, "Visual Analytics Dashboard")

	lineChart(pdf, "Sales Trend", trend.Dates, []series{{label: "Sales", values: trend.Sales, color: colorBlue}})

	rolling := Deref(RollingMean(trend.Sales, RollingWindow, LaxFeatures))
	lineChart(pdf, "Sales vs Rolling Average", trend.Dates, []series{
		{label: "Actual Sales", values: trend.Sales, color: colorBlue},
		{label: fmt.Sprintf("Rolling Average (%d)", RollingWindow), values: rolling, color: colorOrange},
	})

	if len(trend.Growth) > 0 {
		barChart(pdf, "Monthly Growth Analysis (%)", trend.Dates, trend.Growth, nil)
	}
}

func (s *ReportService) performancePage(pdf *fpdf.Fpdf, k models.KpiSnapshot) {
	pdf.AddPage()
	section(pdf, "Performance Analysis")
	barChart(pdf, "Performance Delta", []string{"Average Sales", "Latest Sales"},
		[]float64{k.AvgSales, k.LatestSales}, []rgb{colorBlue, colorOrange})
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func body(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "", 10.5)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 5.5, text, "", "L", false)
	pdf.Ln(2)
}

func bullets(pdf *fpdf.Fpdf, items []string) {
	pdf.SetFont("Helvetica", "", 10.5)
	pdf.SetTextColor(0, 0, 0)
	left, _, _, _ := pdf.GetMargins()
	for _, item := range items {
		pdf.SetX(left)
		pdf.CellFormat(6, 5.5, "-", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 5.5, item, "", "L", false)
		pdf.Ln(1)
	}
}

type series struct {
	label  string
	values []float64
	color  rgb
}

// chartFrame 見出しと枠を描き、描画領域と値の範囲を返す
func chartFrame(pdf *fpdf.Fpdf, title string, lo, hi float64) (x, y, w, h float64) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 6, title, "", 1, "C", false, 0, "")

	x, y = pdf.GetX()+10, pdf.GetY()+2
	w, h = chartWidth-10, chartHeight
	if y+h+14 > 297-20 {
		pdf.AddPage()
		x, y = pdf.GetX()+10, pdf.GetY()+2
	}

	pdf.SetDrawColor(colorGrid.r, colorGrid.g, colorGrid.b)
	pdf.SetLineWidth(0.2)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(colorMuted.r, colorMuted.g, colorMuted.b)
	for i := 0; i <= 4; i++ {
		gy := y + h - h*float64(i)/4
		pdf.Line(x, gy, x+w, gy)
		pdf.Text(x-10, gy+1, formatRounded(lo+(hi-lo)*float64(i)/4, 1))
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.Rect(x, y, w, h, "D")
	return x, y, w, h
}

func xLabels(pdf *fpdf.Fpdf, labels []string, x, y, w, h float64) {
	if len(labels) == 0 {
		return
	}
	stride := int(math.Ceil(float64(len(labels)) / 8))
	if stride < 1 {
		stride = 1
	}
	step := w / float64(len(labels))
	pdf.SetFont("Helvetica", "", 6.5)
	for i := 0; i < len(labels); i += stride {
		pdf.Text(x+step*float64(i)+step/2-6, y+h+4, labels[i])
	}
}

func valueRange(all ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, values := range all {
		for _, v := range values {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	lo = math.Min(lo, 0)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func lineChart(pdf *fpdf.Fpdf, title string, labels []string, lines []series) {
	all := make([][]float64, len(lines))
	for i, l := range lines {
		all[i] = l.values
	}
	lo, hi := valueRange(all...)
	x, y, w, h := chartFrame(pdf, title, lo, hi)
	step := w / float64(len(labels))

	for _, l := range lines {
		pdf.SetDrawColor(l.color.r, l.color.g, l.color.b)
		pdf.SetLineWidth(0.6)
		prevX, prevY, havePrev := 0.0, 0.0, false
		for i, v := range l.values {
			if math.IsNaN(v) {
				havePrev = false
				continue
			}
			px := x + step*float64(i) + step/2
			py := y + h - h*(v-lo)/(hi-lo)
			if havePrev {
				pdf.Line(prevX, prevY, px, py)
			}
			prevX, prevY, havePrev = px, py, true
		}
	}
	xLabels(pdf, labels, x, y, w, h)

	// 凡例
	ly := y + h + 8
	lx := x
	pdf.SetFont("Helvetica", "", 7.5)
	pdf.SetTextColor(0, 0, 0)
	for _, l := range lines {
		pdf.SetFillColor(l.color.r, l.color.g, l.color.b)
		pdf.Rect(lx, ly-2.5, 4, 2.5, "F")
		pdf.Text(lx+5, ly, l.label)
		lx += 45
	}
	pdf.SetY(ly + 6)
}

func barChart(pdf *fpdf.Fpdf, title string, labels []string, values []float64, colors []rgb) {
	lo, hi := valueRange(values)
	x, y, w, h := chartFrame(pdf, title, lo, hi)
	step := w / float64(len(values))
	zeroY := y + h - h*(0-lo)/(hi-lo)

	for i, v := range values {
		c := colorGreen
		switch {
		case len(colors) > i:
			c = colors[i]
		case v < 0:
			c = colorRed
		}
		pdf.SetFillColor(c.r, c.g, c.b)
		top := y + h - h*(v-lo)/(hi-lo)
		bx := x + step*float64(i) + step*0.15
		if top < zeroY {
			pdf.Rect(bx, top, step*0.7, zeroY-top, "F")
		} else {
			pdf.Rect(bx, zeroY, step*0.7, top-zeroY, "F")
		}
	}
	xLabels(pdf, labels, x, y, w, h)
	pdf.SetY(y + h + 10)
}
