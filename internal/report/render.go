package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"postflow/internal/posts"
)

const timeLayout = "2006-01-02 15:04"

// Render writes rep as titled terminal tables.
func Render(w io.Writer, rep Report) error {
	var b strings.Builder
	scope := "All clients"
	if rep.Client != nil {
		scope = fmt.Sprintf("%s <%s>", rep.Client.Name, rep.Client.Email)
	}
	fmt.Fprintf(&b, "Activity report: %s\n", scope)
	fmt.Fprintf(&b, "Generated %s, failures since %s\n\n", rep.GeneratedAt.Format(timeLayout), rep.Since.Format(timeLayout))

	counts := newTable("Posts by status")
	counts.AppendHeader(table.Row{"Status", "Count"})
	total := 0
	for _, status := range posts.AllStatuses() {
		n := rep.Counts[string(status)]
		total += n
		counts.AppendRow(table.Row{string(status), n})
	}
	counts.AppendFooter(table.Row{"Total", total})
	counts.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	b.WriteString(counts.Render())
	b.WriteString("\n\n")

	recent := newTable("Recent posts")
	recent.AppendHeader(table.Row{"ID", "Title", "Status", "Scheduled", "Published", "External ID"})
	for _, row := range rep.Recent {
		recent.AppendRow(table.Row{row.ID, row.Title, row.Status, optionalTime(row.ScheduledTime), optionalTime(row.PublishedAt), row.ExternalID})
	}
	if len(rep.Recent) == 0 {
		recent.AppendRow(table.Row{"", "no posts", "", "", "", ""})
	}
	b.WriteString(recent.Render())
	b.WriteString("\n\n")

	failures := newTable("Publish failures")
	failures.AppendHeader(table.Row{"Post", "Attempted", "Error"})
	for _, row := range rep.Failures {
		failures.AppendRow(table.Row{row.PostID, row.AttemptedAt.Local().Format(timeLayout), truncate(row.Error, 80)})
	}
	if len(rep.Failures) == 0 {
		failures.AppendRow(table.Row{"", "", "none"})
	}
	b.WriteString(failures.Render())
	b.WriteString("\n")

	if len(rep.Engagement) > 0 {
		b.WriteString("\n")
		engagement := newTable("Engagement")
		engagement.AppendHeader(table.Row{"Post", "External ID", "Likes", "Comments"})
		for _, row := range rep.Engagement {
			if row.Error != "" {
				engagement.AppendRow(table.Row{row.PostID, row.ExternalID, "-", "-"})
				continue
			}
			engagement.AppendRow(table.Row{row.PostID, row.ExternalID, row.Likes, row.Comments})
		}
		engagement.AppendFooter(table.Row{"", "Total", rep.TotalLikes, rep.TotalComments})
		b.WriteString(engagement.Render())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	return tw
}

func optionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Local().Format(timeLayout)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
