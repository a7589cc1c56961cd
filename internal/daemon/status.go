package daemon

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mlwx/fetchpub/internal/version"
)

const statusPageShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>fetchpub status</title>
<style>
body { font-family: sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
code { background: #f4f4f4; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

var statusMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderStatusPage builds the markdown status report and renders it to HTML.
func (d *Daemon) RenderStatusPage(ctx context.Context) ([]byte, error) {
	report := d.statusReport(ctx)

	var body bytes.Buffer
	if err := statusMarkdown.Convert([]byte(report), &body); err != nil {
		return nil, fmt.Errorf("render status page: %w", err)
	}
	return []byte(fmt.Sprintf(statusPageShell, body.String())), nil
}

// statusReport composes the markdown status report.
func (d *Daemon) statusReport(ctx context.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# fetchpub\n\n")
	fmt.Fprintf(&b, "Version `%s`, up %s, schedule: %s.\n\n", version.Version, d.Uptime().Round(time.Second), d.describeSchedule())

	if d.InFlight() {
		fmt.Fprintf(&b, "**A run is in flight.**\n\n")
	}

	b.WriteString("## Last run\n\n")
	if res := d.LastResult(); res != nil {
		fmt.Fprintf(&b, "- Run `%s` (%s)\n", res.RunID, res.Trigger)
		fmt.Fprintf(&b, "- Outcome: **%s**\n", res.Outcome)
		if res.CommitHash != "" {
			fmt.Fprintf(&b, "- Commit: `%s`\n", shortHash(res.CommitHash))
		}
		if res.Err != nil {
			fmt.Fprintf(&b, "- Error (%s): %s\n", res.FailedStep, res.Err)
		}
		fmt.Fprintf(&b, "- Finished: %s (%s)\n", res.FinishedAt.Format(time.RFC3339), res.Duration().Round(time.Millisecond))
	} else {
		b.WriteString("No run has executed yet.\n")
	}

	b.WriteString("\n## Recent runs\n\n")
	runs, err := d.journal.Recent(ctx, 10)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Journal unavailable: %s\n", err)
	case len(runs) == 0:
		b.WriteString("No recorded runs.\n")
	default:
		b.WriteString("| Started | Trigger | Outcome | Commit | Error |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, run := range runs {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				run.StartedAt.Format(time.RFC3339), run.Trigger, run.Outcome,
				shortHash(run.CommitHash), run.Error)
		}
	}

	return b.String()
}
