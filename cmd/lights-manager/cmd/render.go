package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/ratelimit"
	"github.com/oshokin/lights-manager/internal/service/manager"
)

// printRecords renders the application table followed by the poll status.
func printRecords(w io.Writer, records []*app.Record, settings config.Settings, tracked int) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Name", "Version", "Status", "Size", "Description")
	tbl.WithWriter(w).WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

	for _, rec := range records {
		tbl.AddRow(rec.Name, rec.Version, status(rec), size(rec), rec.Metadata.Description)
	}

	tbl.Print()

	next := ratelimit.NextPoll(&settings, tracked)

	_, _ = fmt.Fprintf(w, "\nLast GitHub check %s", humanize.Time(settings.LastCheck()))

	switch {
	case settings.OverrideRateLimit:
		_, _ = fmt.Fprintln(w, ", rate-limit cool-down overridden.")
	case next.After(time.Now()):
		_, _ = fmt.Fprintf(w, ", next check allowed %s.\n", humanize.Time(next))
	default:
		_, _ = fmt.Fprintln(w, ", next check allowed now.")
	}
}

func status(rec *app.Record) string {
	switch {
	case rec.Phase.Active():
		return fmt.Sprintf("%s %d%%", rec.Phase, rec.Progress)
	case rec.HasUpdate && rec.UpdateRelease != nil:
		return color.YellowString("update to %s", rec.UpdateRelease.TagName)
	case rec.Installed && rec.PID != 0:
		return color.GreenString("running (pid %d)", rec.PID)
	case rec.Installed:
		return color.GreenString("installed")
	default:
		return "available"
	}
}

// size is the total size of the assets of the release an install would use.
func size(rec *app.Record) string {
	rel := rec.TargetRelease()
	if rel == nil || len(rel.Assets) == 0 {
		return "-"
	}

	var total int64
	for _, asset := range rel.Assets {
		total += asset.Size
	}

	return humanize.Bytes(uint64(total)) //nolint:gosec // Sizes are never negative.
}

// printNotifications writes the queued notifications, errors in red.
func printNotifications(w io.Writer, notifications []manager.Notification) {
	for _, n := range notifications {
		title := color.New(color.Bold).Sprint(n.Title)
		_, _ = fmt.Fprintf(w, "%s: %s\n", title, n.Message)
	}
}
