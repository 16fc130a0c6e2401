package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mgenrique/ess-controller/core/model"
)

// WriteHTML renders a standalone page charting SoC, grid import and the buy
// price of each hour. Prices use the secondary axis.
func WriteHTML(w io.Writer, s model.Schedule) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Battery schedule", Subtitle: s.ComputedAt.Format("2006-01-02 15:04")}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Wh"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "€/kWh"})

	xAxis := make([]string, 0, len(s.Rows))
	soc := make([]opts.LineData, 0, len(s.Rows))
	grid := make([]opts.LineData, 0, len(s.Rows))
	price := make([]opts.LineData, 0, len(s.Rows))
	for _, r := range s.Rows {
		xAxis = append(xAxis, r.Time.Format("15:04"))
		soc = append(soc, opts.LineData{Value: r.SoCWh})
		grid = append(grid, opts.LineData{Value: r.GridImportWh})
		price = append(price, opts.LineData{Value: r.BuyPrice})
	}
	line.SetXAxis(xAxis).
		AddSeries("SoC", soc).
		AddSeries("Grid import", grid).
		AddSeries("Buy price", price, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
