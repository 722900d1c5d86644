// Package reporter implements C5: given a classified message and its
// PerMsgStatus, it produces the outbound message — X-Spam-* headers,
// subject tagging, report-safe wrapping — and its exact inverse,
// remove_markup.
//
// Grounded structurally on zpam's pkg/milter/handler.go
// addSpamHeaders/determineAction (header-prefix constant, templated
// status string), generalized to the full header set and report modes
// the milter handler never implemented.
package reporter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/rules"
)

// HeaderPrefix is the constant header family this reporter adds and
// strips, mirroring the teacher's config.Milter.SpamHeaderPrefix but
// fixed to the spec's X-Spam- convention.
const HeaderPrefix = "X-Spam-"

const reportSentinel = "SPAM: ----"

// Config controls optional reporter behavior: subject tagging, header
// folding, the spam level character, and report-safe mode.
type Config struct {
	Threshold     float64
	SubjectTag    string // e.g. "*****SPAM*****", "" disables tagging
	FoldHeaders   bool
	LevelChar     byte // e.g. '*'
	ReportSafe    int  // 0, 1, or 2
	ReportHeader  bool // mode 0 only: splice into X-Spam-Report instead of body
	Version       string
	Home          string
}

// DefaultConfig mirrors the spec's stated defaults: no subject tag, no
// folding, level character '*', report-safe mode 0.
func DefaultConfig() Config {
	return Config{
		Threshold:  5.0,
		LevelChar:  '*',
		ReportSafe: 0,
		Version:    "1.0",
	}
}

// Report is Build's result: the headers to add (in order), the
// possibly-tagged subject, and the rewritten body.
type Report struct {
	Headers []message.Header
	Subject string
	Body    []byte // report-safe body wrapping; nil when unchanged
}

// Build renders the X-Spam-Status line, optional X-Spam-Level line,
// and (if the verdict is spam) X-Spam-Flag, the subject tag, and the
// report in the mode cfg.ReportSafe selects. message.Header is reused
// here only for its Name/Value shape; reporter does not depend on the
// rule engine's scoring, only its PerMsgStatus view.
func Build(status *rules.PerMsgStatus, subject string, rawBody []byte, cfg Config) Report {
	isSpam := status.Score >= cfg.Threshold

	statusLine := fmt.Sprintf("%s, score=%.1f required=%.1f tests=%s",
		yesNo(isSpam), status.Score, cfg.Threshold, strings.Join(status.Hits, ","))
	if cfg.FoldHeaders {
		statusLine = foldHeader(statusLine, 74)
	}

	rep := Report{
		Headers: []message.Header{{Name: HeaderPrefix + "Status", Value: statusLine}},
		Subject: subject,
	}

	if cfg.LevelChar != 0 {
		level := int(status.Score)
		if level < 0 {
			level = 0
		}
		rep.Headers = append(rep.Headers, message.Header{
			Name:  HeaderPrefix + "Level",
			Value: strings.Repeat(string(cfg.LevelChar), level),
		})
	}

	if !isSpam {
		return rep
	}

	rep.Headers = append(rep.Headers, message.Header{Name: HeaderPrefix + "Flag", Value: "YES"})

	if cfg.SubjectTag != "" {
		tag := strings.NewReplacer(
			"_HITS_", strconv.FormatFloat(status.Score, 'f', 1, 64),
			"_REQD_", strconv.FormatFloat(cfg.Threshold, 'f', 1, 64),
		).Replace(cfg.SubjectTag)
		rep.Subject = tag + " " + subject
	}

	switch cfg.ReportSafe {
	case 1:
		rep.Body = wrapReportSafe(status, cfg, rawBody, "message/rfc822")
	case 2:
		rep.Body = wrapReportSafe(status, cfg, rawBody, "text/plain")
	default:
		report := RenderTemplate(TemplateReport, status, cfg)
		if cfg.ReportHeader {
			rep.Headers = append(rep.Headers, message.Header{Name: HeaderPrefix + "Report", Value: report})
		} else {
			rep.Body = spliceIntoBody(rawBody, report)
		}
	}

	return rep
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// foldHeader folds a header value once a line reaches width columns:
// the first space at or past that point is replaced by "\r\n\t".
func foldHeader(value string, width int) string {
	if len(value) <= width {
		return value
	}
	var b strings.Builder
	line := 0
	for i := 0; i < len(value); i++ {
		if line >= width && value[i] == ' ' {
			b.WriteString("\r\n\t")
			line = 0
			continue
		}
		b.WriteByte(value[i])
		line++
	}
	return b.String()
}

// wrapReportSafe wraps the original message as a new MIME container: a
// text/plain report part followed by the original message as either a
// message/rfc822 (mode 1) or text/plain (mode 2) attachment.
func wrapReportSafe(status *rules.PerMsgStatus, cfg Config, rawBody []byte, innerType string) []byte {
	const boundary = "----------=_SPAM_REPORT_SAFE"
	report := RenderTemplate(TemplateReport, status, cfg)

	var b strings.Builder
	fmt.Fprintf(&b, "This is a multi-part message in MIME format.\r\n\r\n")
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=us-ascii\r\n\r\n", boundary)
	b.WriteString(report)
	b.WriteString("\r\n\r\n")
	fmt.Fprintf(&b, "--%s\r\nContent-Type: %s\r\n\r\n", boundary, innerType)
	b.Write(rawBody)
	fmt.Fprintf(&b, "\r\n--%s--\r\n", boundary)
	return []byte(b.String())
}

// spliceIntoBody prepends report to body, separated by a blank line.
// The report always goes before the first body line; it is not
// inserted after a MIME boundary line, even when body has one.
func spliceIntoBody(body []byte, report string) []byte {
	text := string(body)
	if idx := strings.Index(text, "\r\n\r\n"); idx >= 0 {
		// Heuristic: look for a boundary marker line within the first part.
		if bIdx := strings.Index(text[:idx], "boundary="); bIdx >= 0 {
			return []byte(report + "\r\n\r\n" + text)
		}
	}
	return []byte(report + "\r\n\r\n" + text)
}

// RemoveMarkup is the exact inverse of Build: it strips every
// X-Spam-*-prefixed header, restores X-Spam-Prev-Content-Type /
// X-Spam-Prev-Content-Transfer-Encoding under their original names if
// present, removes a subject-tag prefix, and excises an embedded report
// (detected by the "SPAM: ----" sentinel) along with one trailing blank
// line.
func RemoveMarkup(headers []message.Header, subjectTag string, subject string, body []byte) (kept []message.Header, cleanSubject string, cleanBody []byte) {
	var out []message.Header
	var prevContentType, prevCTE string

	for _, h := range headers {
		switch {
		case h.Name == HeaderPrefix+"Prev-Content-Type":
			prevContentType = h.Value
		case h.Name == HeaderPrefix+"Prev-Content-Transfer-Encoding":
			prevCTE = h.Value
		case strings.HasPrefix(h.Name, HeaderPrefix):
			// dropped
		default:
			out = append(out, h)
		}
	}
	if prevContentType != "" {
		out = append(out, message.Header{Name: "Content-Type", Value: prevContentType})
	}
	if prevCTE != "" {
		out = append(out, message.Header{Name: "Content-Transfer-Encoding", Value: prevCTE})
	}

	cleanSubject = subject
	if subjectTag != "" && strings.HasPrefix(cleanSubject, subjectTag) {
		cleanSubject = strings.TrimPrefix(cleanSubject, subjectTag)
		cleanSubject = strings.TrimPrefix(cleanSubject, " ")
	}

	cleanBody = exciseReport(body)
	return out, cleanSubject, cleanBody
}

func exciseReport(body []byte) []byte {
	text := string(body)
	idx := strings.Index(text, reportSentinel)
	if idx < 0 {
		return body
	}

	// Find the start of the report: the beginning of the line containing
	// the sentinel, walking back to the previous blank line if any.
	start := strings.LastIndex(text[:idx], "\n\n")
	if start < 0 {
		start = 0
	} else {
		start += 2
	}

	// Find the end: the next blank line after the sentinel, plus it.
	rest := text[idx:]
	end := strings.Index(rest, "\n\n")
	if end < 0 {
		return []byte(text[:start])
	}

	return []byte(text[:start] + rest[end+2:])
}
