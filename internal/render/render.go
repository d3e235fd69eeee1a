// Package render prints the console view-models as terminal tables.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"white-traffic-console/internal/alert"
	"white-traffic-console/internal/model"
	"white-traffic-console/internal/rules"
	"white-traffic-console/internal/traffic"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const (
	EmptyRules         = "No rules yet, add a new rule to get started."
	EmptyAlerts        = "There are no alerts right now."
	EmptyResolvedAlert = "There are no resolved alerts."
)

var (
	colorRed    = color.New(color.FgRed).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintFunc()
	colorGreen  = color.New(color.FgGreen).SprintFunc()
	colorBlue   = color.New(color.FgBlue).SprintFunc()
	colorCyan   = color.New(color.FgCyan).SprintFunc()
	colorBold   = color.New(color.Bold).SprintFunc()
)

// DisableColor turns colour output off for every renderer.
func DisableColor() {
	color.NoColor = true
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Rules prints the rule table, or the empty-state line.
func Rules(w io.Writer, list []model.Rule) {
	if len(list) == 0 {
		fmt.Fprintln(w, EmptyRules)
		return
	}

	table := newTable(w, []string{"ID", "Name", "Description", "Conditions", "Status"})
	for _, r := range list {
		status := colorYellow("inactive")
		if r.Active {
			status = colorGreen("active")
		}
		table.Append([]string{
			r.ID.String(),
			r.Name,
			r.Description,
			r.Conditions,
			status,
		})
	}
	table.Render()
}

// RuleStats prints the one-line registry summary.
func RuleStats(w io.Writer, s rules.Stats) {
	fmt.Fprintf(w, "%s rules: %d active, %d inactive\n", colorBold(s.Total), s.Active, s.Inactive)
}

// Draft prints the fields of a rule draft for review before submission.
func Draft(w io.Writer, d *rules.Draft) {
	rule := d.Rule()
	title := "New rule"
	if !d.IsNew() {
		title = "Editing rule " + d.Target().String()
	}
	fmt.Fprintln(w, colorBold(title))
	fmt.Fprintf(w, "  name:        %s\n", rule.Name)
	fmt.Fprintf(w, "  description: %s\n", rule.Description)
	fmt.Fprintf(w, "  conditions:  %s\n", rule.Conditions)
	fmt.Fprintf(w, "  active:      %v\n", rule.Active)
}

// Severity returns the coloured severity label.
func Severity(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return colorRed(s.Label())
	case model.SeverityMedium:
		return colorYellow(s.Label())
	case model.SeverityLow:
		return colorBlue(s.Label())
	}
	return s.Label()
}

// Alerts prints the alert table. Empty boards get a message that depends on
// the visibility filter.
func Alerts(w io.Writer, list []model.Alert, showResolved bool) {
	if len(list) == 0 {
		if showResolved {
			fmt.Fprintln(w, EmptyResolvedAlert)
		} else {
			fmt.Fprintln(w, EmptyAlerts)
		}
		return
	}

	table := newTable(w, []string{"ID", "Time", "Severity", "Title", "Status"})
	for _, a := range list {
		status := colorRed("open")
		if a.Resolved {
			status = colorGreen("resolved")
		}
		table.Append([]string{
			a.ID.String(),
			formatTime(a.Timestamp),
			Severity(a.Severity),
			a.Title,
			status,
		})
	}
	table.Render()
}

// AlertCounts prints the open/resolved summary line.
func AlertCounts(w io.Writer, c alert.Counts) {
	fmt.Fprintf(w, "%s open, %d resolved (high %d, medium %d, low %d)\n",
		colorBold(c.Open), c.Resolved,
		c.BySeverity[model.SeverityHigh], c.BySeverity[model.SeverityMedium], c.BySeverity[model.SeverityLow])
}

// AlertDetail prints one alert with its details and suggestion, when present.
func AlertDetail(w io.Writer, a model.Alert) {
	fmt.Fprintf(w, "%s [%s] %s\n", colorBold(a.Title), Severity(a.Severity), formatTime(a.Timestamp))
	if a.Description != "" {
		fmt.Fprintln(w, a.Description)
	}
	if a.HasDetails() {
		fmt.Fprintln(w, colorCyan("Details:"))
		fmt.Fprintln(w, prettyJSON(a.Details))
	}
	if a.Suggestion != "" {
		fmt.Fprintln(w, colorCyan("Suggested action:"))
		fmt.Fprintln(w, a.Suggestion)
	}
}

// TrafficSummary prints the four headline counters.
func TrafficSummary(w io.Writer, r model.TimeRange, s traffic.Summary) {
	fmt.Fprintf(w, "Traffic over the last %s\n", colorBold(r))
	table := newTable(w, []string{traffic.LabelTotal, traffic.LabelWhite, traffic.LabelFiltered, traffic.LabelMalicious})
	table.Append([]string{
		Thousands(s.Total),
		colorGreen(Thousands(s.White)),
		colorYellow(Thousands(s.Filtered)),
		colorRed(Thousands(s.Malicious)),
	})
	table.Render()
}

// TrendTable prints the time series, one row per point.
func TrendTable(w io.Writer, t traffic.TrendSeries) {
	if t.Len() == 0 {
		fmt.Fprintln(w, "No trend data for this range.")
		return
	}
	table := newTable(w, []string{"Time", traffic.LabelTotal, traffic.LabelWhite, traffic.LabelFiltered, traffic.LabelMalicious})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i := range t.Labels {
		table.Append([]string{
			t.Labels[i],
			Thousands(t.Total[i]),
			Thousands(t.White[i]),
			Thousands(t.Filtered[i]),
			Thousands(t.Malicious[i]),
		})
	}
	table.Render()
}

// Distribution prints a proportional breakdown with a share column.
func Distribution(w io.Writer, title string, d traffic.Distribution) {
	fmt.Fprintln(w, colorBold(title))
	if len(d.Slices) == 0 {
		fmt.Fprintln(w, "No data for this range.")
		return
	}
	table := newTable(w, []string{"Label", "Count", "Share"})
	for _, sl := range d.Slices {
		table.Append([]string{
			sl.Label,
			Thousands(sl.Value),
			fmt.Sprintf("%.1f%%", sl.Share*100),
		})
	}
	table.Render()
}

// Thousands formats n with comma separators.
func Thousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
