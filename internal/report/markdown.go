package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// BuildMarkdown renders the final markdown document for a finished run. It
// wraps the generated report with run metadata and the per-agent record, so
// a failed run still yields a useful diagnostic document.
func BuildMarkdown(snap core.RunSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Due Diligence: %s\n\n", snap.Input.StartupName)
	fmt.Fprintf(&b, "- Run: `%s`\n", snap.RunID)
	fmt.Fprintf(&b, "- Stage: %s\n", snap.Stage)
	fmt.Fprintf(&b, "- Retry cycles: %d\n", snap.RetryCount)
	if snap.Decision != "" {
		fmt.Fprintf(&b, "- Decision: %s\n", firstLine(snap.Decision))
	}
	b.WriteString("\n")

	if snap.Report != "" {
		b.WriteString(snap.Report)
		b.WriteString("\n\n")
	}

	if len(snap.Failed) > 0 {
		b.WriteString("## Failed agents\n\n")
		for _, id := range snap.Failed {
			r := snap.Results[id]
			if r != nil && r.Err != nil {
				fmt.Fprintf(&b, "- `%s`: %s\n", id, r.Err.Message)
			} else {
				fmt.Fprintf(&b, "- `%s`\n", id)
			}
		}
		b.WriteString("\n")
	}

	if len(snap.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		for _, e := range snap.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderHTML converts a markdown report to HTML.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
