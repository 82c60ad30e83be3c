package web

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// HistoryReport builds a GFM markdown report of a review's versions: a
// heading, a status-transition table, and a summary line. Returns empty
// string when there are no versions.
func HistoryReport(reviewID string, versions []model.ReviewVersion) string {
	if len(versions) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Review `%s`\n\n", escapeCode(reviewID))
	b.WriteString("| Version | Status | Reviewer | Timestamp |\n")
	b.WriteString("|---:|---|---|---|\n")

	transitions := 0
	prev := ""
	for i, v := range versions {
		status := escapeCell(v.Record.Status)
		if i > 0 && v.Record.Status != prev {
			status = fmt.Sprintf("**%s**", status)
			transitions++
		}
		prev = v.Record.Status

		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			v.Entry.Sequence, status, escapeCell(v.Record.Reviewer), escapeCell(v.Record.Timestamp))
	}

	last := versions[len(versions)-1].Record.Status
	fmt.Fprintf(&b, "\n%d versions, %d status changes, currently *%s*.\n", len(versions), transitions, escapeCell(last))

	return b.String()
}

// escapeCell neutralizes characters that would break a GFM table cell or
// start inline markup.
func escapeCell(s string) string {
	if s == "" {
		return "&nbsp;"
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		"|", `\|`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"[", `\[`,
		"<", "&lt;",
		"\n", " ",
		"\r", " ",
	)
	return r.Replace(s)
}

func escapeCode(s string) string {
	return strings.NewReplacer("`", "'", "\n", " ").Replace(s)
}
