package chart

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"scalpel/internal/market"
)

// 中文说明：
// 走势快照：把各时间框架 K线 + EMA 叠加 + 成交量渲染成单页 HTML，
// 供人工复盘一次运行时各闸门看到的行情。输出为本地文件。

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEmaFast       = "#3b82f6"
	colorEmaSlow       = "#f472b6"

	chartWidthPx   = 1600
	klineHeightPx  = 520
	volumeHeightPx = 220
)

// SnapshotInput 汇集一次运行中各时间框架的数据。
type SnapshotInput struct {
	Symbol    string
	TraceID   string
	Intervals []string
	Candles   map[string][]market.Candle
	Notes     map[string]string
}

// WriteSnapshot 渲染并写入 outDir，返回生成的文件路径。
func WriteSnapshot(input SnapshotInput, outDir string) (string, error) {
	if input.Symbol == "" {
		return "", fmt.Errorf("symbol required for snapshot")
	}
	if len(input.Intervals) == 0 {
		return "", fmt.Errorf("at least one interval required for %s", input.Symbol)
	}
	html, err := buildSnapshotHTML(input)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.html", strings.ToLower(input.Symbol), time.Now().Format("20060102_150405"))
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func buildSnapshotHTML(input SnapshotInput) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	for _, interval := range input.Intervals {
		candles := input.Candles[interval]
		if len(candles) == 0 {
			continue
		}
		minPrice, maxPrice := priceBounds(candles)
		padding := (maxPrice - minPrice) * 0.05
		if padding <= 0 {
			padding = math.Max(1, math.Abs(maxPrice)*0.01)
		}

		kline := charts.NewKLine()
		kline.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				Theme:           types.ThemeWesteros,
				Width:           fmt.Sprintf("%dpx", chartWidthPx),
				Height:          fmt.Sprintf("%dpx", klineHeightPx),
				BackgroundColor: colorBackground,
			}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
			charts.WithTitleOpts(opts.Title{
				Title:         fmt.Sprintf("%s %s", strings.ToUpper(input.Symbol), interval),
				Subtitle:      input.Notes[interval],
				Left:          "left",
				Top:           "10",
				TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
				SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
			charts.WithXAxisOpts(opts.XAxis{
				Type:      "category",
				AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
				SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
			}),
			charts.WithYAxisOpts(opts.YAxis{
				Scale:     opts.Bool(true),
				AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
				Min:       round(minPrice-padding, 4),
				Max:       round(maxPrice+padding, 4),
				SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
			}),
		)
		kline.SetSeriesOptions(
			charts.WithItemStyleOpts(opts.ItemStyle{
				Color:        colorBull,
				Color0:       colorBear,
				BorderColor:  colorBull,
				BorderColor0: colorBear,
			}),
		)

		xAxis := buildXAxis(candles)
		kline.SetXAxis(xAxis)
		kline.AddSeries(fmt.Sprintf("Price_%s", interval), buildKlineSeries(candles))

		emaLine := buildEMALine(candles)
		emaLine.SetXAxis(xAxis)
		kline.Overlap(emaLine)

		page.AddCharts(kline, buildVolumeChart(interval, xAxis, candles))
	}

	if len(page.Charts) == 0 {
		return nil, fmt.Errorf("no charts rendered for %s", input.Symbol)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
	}
	return x
}

func buildKlineSeries(candles []market.Candle) []opts.KlineData {
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	return data
}

func buildEMALine(candles []market.Candle) *charts.Line {
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	closes := market.Closes(candles)
	var fast, slow []float64
	if len(closes) >= 9 {
		fast = talib.Ema(closes, 9)
	}
	if len(closes) >= 21 {
		slow = talib.Ema(closes, 21)
	}
	line.AddSeries("EMA9", toLineData(fast, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 2}))
	line.AddSeries("EMA21", toLineData(slow, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 2}))
	return line
}

func buildVolumeChart(interval string, xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Volume %s", interval), Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 6,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value: c.Volume,
			ItemStyle: &opts.ItemStyle{
				Color:   color,
				Opacity: opts.Float(0.6),
			},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		val := series[i]
		if math.IsNaN(val) || val == 0 {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(val, 4)}
		}
	}
	return line
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}
