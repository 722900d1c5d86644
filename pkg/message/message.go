// Package message implements the C1 message model: it parses a raw
// RFC-822 byte stream once and exposes every view the rule engine needs
// (decoded headers, decoded body, raw body, URIs, full text) without
// re-parsing on each access.
//
// Adapted from zpam's pkg/email/parser.go, generalized from "extract a
// handful of spam features" into the full header/body/raw-body/URI
// surface the rule engine needs.
package message

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"regexp"
	"strings"
	"sync"

	emmessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers non-UTF-8 charsets with mime.WordDecoder
	"golang.org/x/text/encoding/ianaindex"
)

// wordDecoder performs RFC 2047 ("=?charset?q?...?=") decoding of
// header values for every accessor mode except ":raw", resolving
// non-UTF-8 charsets via golang.org/x/text/encoding/ianaindex instead
// of a hand-rolled charset table.
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.MIME.Encoding(charset)
		if err != nil || enc == nil {
			return input, nil
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

func mimeDecode(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

const maxBodyLineLen = 4096

// Header is one occurrence of a header field, kept in original order
// so duplicate header names round-trip. Continuation lines are unfolded
// into a single value, so the original folding is not preserved.
type Header struct {
	Name  string
	Value string
}

// HeaderMap is a case-insensitive, multi-valued, insertion-ordered
// collection of header fields.
type HeaderMap struct {
	order []Header
}

func (h *HeaderMap) add(name, value string) {
	h.order = append(h.order, Header{Name: name, Value: value})
}

// Values returns every value stored under name, in insertion order.
func (h *HeaderMap) Values(name string) []string {
	var out []string
	for _, f := range h.order {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// All returns every header field in original order.
func (h *HeaderMap) All() []Header {
	return h.order
}

// Message is one parsed email. It is immutable after Parse except for
// the header-accessor cache, which memoizes DSL lookups and is
// invalidated by StripResultHeaders.
type Message struct {
	raw      []byte
	headers  HeaderMap
	bodyText []byte // decoded, MIME-aware body used by BodyLines/get_body_lines
	rawBody  []byte // undecoded body bytes with CRLF normalized to LF, for rebuilding the message
	rawLines []byte // rawBody with its own Content-Transfer-Encoding undone, used by RawBodyLines/get_raw_body_lines

	cacheMu sync.Mutex
	cache   map[string]string
}

// Parse splits raw into headers and body on the first blank line,
// folding continuation lines (leading whitespace) into the previous
// header, and decodes the MIME body per C1's responsibilities.
func Parse(raw []byte) (*Message, error) {
	m := &Message{raw: raw, cache: make(map[string]string)}

	headerBytes, bodyBytes := splitHeaders(raw)

	hm, err := parseHeaderBlock(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("message: parse headers: %w", err)
	}
	m.headers = hm
	m.rawBody = bodyBytes
	m.rawLines = decodeTransferEncoding(m.headers, bodyBytes)

	decoded, err := decodeBody(m.headers, bodyBytes)
	if err != nil {
		// Malformed MIME boundaries silently degrade to raw body.
		decoded = bodyBytes
	}
	m.bodyText = decoded

	return m, nil
}

// splitHeaders finds the first blank-line boundary (CRLF CRLF, CRLF LF,
// LF LF, or LF CRLF) and returns the header block and the remaining
// body, exactly as 4.1's parse describes.
func splitHeaders(raw []byte) (headers, body []byte) {
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if idx := bytes.Index(normalized, []byte("\n\n")); idx >= 0 {
		return normalized[:idx], normalized[idx+2:]
	}
	return normalized, nil
}

func parseHeaderBlock(headerBytes []byte) (HeaderMap, error) {
	var hm HeaderMap
	scanner := bufio.NewScanner(bytes.NewReader(headerBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name, value string
	have := false
	flush := func() {
		if have {
			hm.add(name, value)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && have {
			// Continuation line: fold into the previous header's value.
			value += " " + strings.TrimSpace(line)
			continue
		}
		flush()
		have = false

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			// Not a well-formed header line; ignore per "degrade gracefully".
			continue
		}
		name = strings.TrimSpace(line[:colon])
		value = strings.TrimSpace(line[colon+1:])
		have = true
	}
	flush()

	return hm, scanner.Err()
}

// decodeBody walks a MIME tree with github.com/emersion/go-message and
// concatenates text/* parts, replacing every skipped part with a
// "[skipped TYPE attachment]" marker line so body line counts stay
// stable for rule offsets that count lines.
func decodeBody(h HeaderMap, body []byte) ([]byte, error) {
	full := bytes.NewBuffer(nil)
	for _, f := range h.All() {
		full.WriteString(f.Name)
		full.WriteString(": ")
		full.WriteString(f.Value)
		full.WriteString("\r\n")
	}
	full.WriteString("\r\n")
	full.Write(body)

	e, err := emmessage.Read(full)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, perr := mr.NextPart()
			if perr == io.EOF {
				break
			}
			if perr != nil {
				return nil, perr
			}
			appendPart(&out, part)
		}
		return out.Bytes(), nil
	}

	appendPart(&out, e)
	return out.Bytes(), nil
}

func appendPart(out *bytes.Buffer, part *emmessage.Entity) {
	ct := part.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "text/") {
		content, err := io.ReadAll(part.Body)
		if err != nil {
			return
		}
		out.Write(content)
		if len(content) == 0 || content[len(content)-1] != '\n' {
			out.WriteByte('\n')
		}
		return
	}

	fmt.Fprintf(out, "[skipped %s attachment]\n", strings.ToUpper(mediaType))
}

// decodeTransferEncoding undoes the top-level Content-Transfer-Encoding
// on body, per 4.1's get_raw_body_lines: quoted-printable decodes
// outright, base64 decodes the constant-length-line run it detects,
// anything else (7bit/8bit/binary/absent) passes through unchanged.
func decodeTransferEncoding(h HeaderMap, body []byte) []byte {
	switch transferEncoding(h) {
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body
		}
		return decoded
	case "base64":
		return decodeBase64Run(body)
	default:
		return body
	}
}

func transferEncoding(h HeaderMap) string {
	vals := h.Values("Content-Transfer-Encoding")
	if len(vals) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(vals[0]))
}

// decodeBase64Run finds the first run of three or more consecutive
// lines of equal, non-zero length that look like bare base64 text,
// treats that as the start of the encoded section (per 4.1), decodes
// every base64-looking line from there on, and leaves any surrounding
// lines (headers bled into the body, a MIME epilogue) untouched.
func decodeBase64Run(body []byte) []byte {
	lines := bytes.Split(body, []byte("\n"))

	start := -1
	for i := 0; i+2 < len(lines); i++ {
		a, b, c := trimCR(lines[i]), trimCR(lines[i+1]), trimCR(lines[i+2])
		if len(a) == 0 || len(a) != len(b) || len(b) != len(c) {
			continue
		}
		if looksBase64(a) && looksBase64(b) && looksBase64(c) {
			start = i
			break
		}
	}
	if start < 0 {
		return body
	}

	end := start
	var encoded bytes.Buffer
	for end < len(lines) {
		l := trimCR(lines[end])
		if len(l) == 0 || !looksBase64(l) {
			break
		}
		encoded.Write(l)
		end++
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return body
	}

	var out bytes.Buffer
	for _, l := range lines[:start] {
		out.Write(l)
		out.WriteByte('\n')
	}
	out.Write(decoded)
	if end < len(lines) {
		out.WriteByte('\n')
		out.Write(bytes.Join(lines[end:], []byte("\n")))
	}
	return out.Bytes()
}

func trimCR(l []byte) []byte {
	return bytes.TrimSuffix(l, []byte("\r"))
}

func looksBase64(l []byte) bool {
	for _, c := range l {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}

// BodyLines returns the decoded body as newline-terminated lines,
// truncating any single line to 4096 bytes to bound regex backtracking.
func (m *Message) BodyLines() []string {
	return splitTruncated(m.bodyText)
}

// RawBodyLines returns the pre-MIME-decode body lines, with quoted-
// printable or base64 Content-Transfer-Encoding undone per 4.1's
// get_raw_body_lines.
func (m *Message) RawBodyLines() []string {
	return splitTruncated(m.rawLines)
}

// RawBody returns the pre-decode body bytes, with CRLF line endings
// normalized to LF, for callers rebuilding the message (e.g. the
// PROCESS response).
func (m *Message) RawBody() []byte {
	return m.rawBody
}

// Headers returns every header in original order, for callers that
// need to reproduce the message's header block (e.g. PROCESS
// rewriting).
func (m *Message) Headers() []Header {
	return m.headers.All()
}

func splitTruncated(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	for i, l := range lines {
		if len(l) > maxBodyLineLen {
			lines[i] = l[:maxBodyLineLen]
		}
	}
	return lines
}

// FullText returns header bytes, a blank line, and the raw body bytes,
// for full-text regex tests.
func (m *Message) FullText() []byte {
	var buf bytes.Buffer
	for _, f := range m.headers.All() {
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(m.rawBody)
	return buf.Bytes()
}

// StripResultHeaders removes any header whose name appears (case
// insensitively) in prefix, e.g. the "X-Spam-" family, and invalidates
// the accessor cache. This is spec step 1 of rule execution: a message
// already carrying scoring headers must never be re-scored against them.
func (m *Message) StripResultHeaders(prefixes []string) {
	kept := m.headers.order[:0]
	for _, f := range m.headers.order {
		strip := false
		for _, p := range prefixes {
			if len(f.Name) >= len(p) && strings.EqualFold(f.Name[:len(p)], p) {
				strip = true
				break
			}
		}
		if !strip {
			kept = append(kept, f)
		}
	}
	m.headers.order = kept

	m.cacheMu.Lock()
	m.cache = make(map[string]string)
	m.cacheMu.Unlock()
}

// addrRegexp matches "Display Name" <addr> or a bare addr.
var addrRegexp = regexp.MustCompile(`(?:"?([^"<]*)"?\s*)?<?([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})>?`)

// Header implements the request-key DSL: "Name" (join multi-value with
// newline), "Name:addr", "Name:name", "Name:raw", "ALL", "ToCc".
// Results are cached by the raw request key.
func (m *Message) Header(key string) string {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if v, ok := m.cache[key]; ok {
		return v
	}
	v := m.resolveHeader(key)
	m.cache[key] = v
	return v
}

// HeaderDefault returns Header(key), falling back to def when the
// accessor is empty.
func (m *Message) HeaderDefault(key, def string) string {
	if v := m.Header(key); v != "" {
		return v
	}
	return def
}

func (m *Message) resolveHeader(key string) string {
	switch key {
	case "ALL":
		var parts []string
		for _, f := range m.headers.All() {
			parts = append(parts, f.Name+": "+mimeDecode(f.Value))
		}
		return strings.Join(parts, "\n")
	case "ToCc":
		vals := append(append([]string{}, m.headers.Values("To")...), m.headers.Values("Cc")...)
		return strings.Join(vals, ", ")
	}

	name, mode, hasMode := strings.Cut(key, ":")
	if !hasMode {
		return mimeDecode(strings.Join(m.headers.Values(name), "\n"))
	}

	vals := m.headers.Values(name)
	if len(vals) == 0 {
		return ""
	}

	switch mode {
	case "raw":
		return vals[0]
	case "addr":
		return extractAddr(mimeDecode(vals[0]))
	case "name":
		return extractName(mimeDecode(vals[0]))
	default:
		return mimeDecode(strings.Join(vals, "\n"))
	}
}

func stripComments(s string) string {
	var out strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func extractAddr(value string) string {
	clean := stripComments(value)
	m := addrRegexp.FindStringSubmatch(clean)
	if m == nil {
		return ""
	}
	return m[2]
}

func extractName(value string) string {
	clean := stripComments(value)
	m := addrRegexp.FindStringSubmatch(clean)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var (
	uriRegexp    = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s<>"']+`)
	bareHostRe   = regexp.MustCompile(`(?i)\b(www|ftp)\.[A-Za-z0-9.\-]+\.[A-Za-z]{2,}(?:/[^\s<>"']*)?`)
	mailtoRe     = regexp.MustCompile(`(?i)mailto:[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// URIs extracts links from the decoded body using the URI regex, bare
// www./ftp. hostnames (synthesizing the matching scheme), and a
// mailto: sweep.
func (m *Message) URIs() []string {
	text := string(m.bodyText)

	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	for _, u := range uriRegexp.FindAllString(text, -1) {
		add(u)
	}
	for _, host := range bareHostRe.FindAllString(text, -1) {
		scheme := "http://"
		if strings.HasPrefix(strings.ToLower(host), "ftp.") {
			scheme = "ftp://"
		}
		add(scheme + host)
	}
	for _, mt := range mailtoRe.FindAllString(text, -1) {
		add(mt)
	}

	return out
}

// ParseReader is a convenience wrapper over Parse for io.Reader sources,
// mirroring the teacher's ParseFromFile/Parse split in pkg/email/parser.go.
func ParseReader(r io.Reader) (*Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("message: read: %w", err)
	}
	return Parse(raw)
}
