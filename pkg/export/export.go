// Package export renders schedules as JSON, CSV, markdown or an HTML chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

// Format selects an output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
)

var header = []string{
	"hour", "time", "buy_price", "sell_price", "demand_wh", "solar_wh",
	"grid_import_wh", "grid_export_wh", "charge_wh", "discharge_wh",
	"soc_wh", "soc_percent",
}

var mdHeader = []string{
	"Hour", "Time", "Buy (€/kWh)", "Sell (€/kWh)", "Demand (Wh)", "Solar (Wh)",
	"From grid (Wh)", "To grid (Wh)", "To battery (Wh)", "From battery (Wh)",
	"SoC (Wh)", "SoC (%)",
}

// Write dispatches to the writer for f.
func Write(w io.Writer, f Format, s model.Schedule) error {
	switch f {
	case FormatMarkdown, "md", "":
		return WriteMarkdown(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatHTML:
		return WriteHTML(w, s)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, s model.Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteCSV writes one record per schedule row with a header line.
func WriteCSV(w io.Writer, s model.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range s.Rows {
		if err := cw.Write(record(r, time.RFC3339)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMarkdown writes the schedule rows as a markdown table followed by
// the economics summary.
func WriteMarkdown(w io.Writer, s model.Schedule) error {
	var b strings.Builder
	b.WriteString("| " + strings.Join(mdHeader, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(mdHeader)) + "\n")
	for _, r := range s.Rows {
		b.WriteString("| " + strings.Join(record(r, "2006-01-02 15:04"), " | ") + " |\n")
	}
	if len(s.Rows) > 0 {
		e := s.Economics
		b.WriteString("\n")
		fmt.Fprintf(&b, "- Total cost: %.2f €\n", e.TotalCost)
		fmt.Fprintf(&b, "- Grid cost: %.2f €\n", e.NetGridCost)
		fmt.Fprintf(&b, "- Battery cost: %.2f €\n", e.NetBatteryCost)
		fmt.Fprintf(&b, "- Uncontrolled demand cost: %.2f €\n", e.GrossDemandCost)
		fmt.Fprintf(&b, "- Final SoC: %.0f Wh\n", e.FinalSoCWh)
		fmt.Fprintf(&b, "- Cheapest hour: %s (%.4f €/kWh)\n", e.MinPriceTime.Format("15:04"), e.MinBuyPrice)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func record(r model.Row, layout string) []string {
	return []string{
		strconv.Itoa(r.Hour),
		r.Time.Format(layout),
		strconv.FormatFloat(r.BuyPrice, 'f', -1, 64),
		strconv.FormatFloat(r.SellPrice, 'f', -1, 64),
		strconv.FormatFloat(r.DemandWh, 'f', 0, 64),
		strconv.FormatFloat(r.SolarWh, 'f', 0, 64),
		strconv.FormatFloat(r.GridImportWh, 'f', 0, 64),
		strconv.FormatFloat(r.GridExportWh, 'f', 0, 64),
		strconv.FormatFloat(r.ChargeWh, 'f', 0, 64),
		strconv.FormatFloat(r.DischargeWh, 'f', 0, 64),
		strconv.FormatFloat(r.SoCWh, 'f', 0, 64),
		strconv.Itoa(r.SoCPercent),
	}
}
