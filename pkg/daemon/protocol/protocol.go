// Package protocol implements C7's spamd/spamc line protocol:
// CHECK/SYMBOLS/REPORT/REPORT_IFSPAM/PROCESS requests framed by
// Content-length, and SPAMD/version responses with locale-independent
// float rendering, per spec §4.7.
//
// Grounded on the teacher's pkg/milter/server.go Serve(ctx, listener)
// shape (error channel raced against context cancellation, graceful
// shutdown) — the only hand-rolled net.Listener-driven server loop in
// the example pack.
package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/reporter"
	"github.com/zpam/spamd/pkg/rules"
)

// Version is the protocol version advertised in the SPAMD banner.
const Version = "1.5"

// Verb is one of the five request verbs spec §4.7 defines.
type Verb string

const (
	VerbCheck        Verb = "CHECK"
	VerbSymbols      Verb = "SYMBOLS"
	VerbReport       Verb = "REPORT"
	VerbReportIfSpam Verb = "REPORT_IFSPAM"
	VerbProcess      Verb = "PROCESS"
)

// Request is one parsed client request: its verb, header fields, and
// the exact-length message body that followed.
type Request struct {
	Verb    Verb
	User    string
	Headers map[string]string
	Body    []byte
}

// Classifier is the engine dependency Handle needs: score a message and
// render its report/rewrite, satisfied by pkg/rules.Engine plus
// pkg/bayes.Classifier plus pkg/reporter composed by the caller.
type Classifier interface {
	Classify(ctx context.Context, msg *message.Message) (*rules.PerMsgStatus, error)
}

// Server serves the spamd wire protocol over a net.Listener, dispatching
// each connection to Handle.
type Server struct {
	Classifier Classifier
	Reporter   reporter.Config
	Log        *logrus.Logger

	listener net.Listener
}

// Serve accepts connections from listener until ctx is canceled,
// handling each on its own goroutine; on cancellation it closes the
// listener so Accept unblocks with an error, mirroring the teacher's
// error-channel-vs-ctx.Done() race.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	errCh := make(chan error, 1)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				errCh <- err
				return
			}
			go s.handleConn(ctx, conn)
		}
	}()

	select {
	case <-ctx.Done():
		listener.Close()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("protocol: listener accept failed: %w", err)
		}
		return nil
	}
}

// HandleConn serves one already-accepted connection. It satisfies
// scheduler.Handler, letting a prefork scheduler.Pool dispatch accepted
// connections straight into the wire protocol instead of Serve's own
// accept loop.
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	s.handleConn(ctx, conn)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(60 * time.Second))

	req, err := ReadRequest(conn)
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).Warn("protocol: malformed request")
		}
		return
	}

	resp, err := s.Handle(ctx, req)
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).Warn("protocol: classification failed")
		}
		resp = &Response{Code: 76, Message: "EX_PROTOCOL"}
	}
	WriteResponse(conn, resp)
}

// Handle classifies req's body and builds the appropriate Response for
// its verb.
func (s *Server) Handle(ctx context.Context, req *Request) (*Response, error) {
	msg, err := message.Parse(req.Body)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing message: %w", err)
	}

	status, err := s.Classifier.Classify(ctx, msg)
	if err != nil {
		return nil, err
	}

	isSpam := status.Score >= s.Reporter.Threshold
	resp := &Response{
		Code:      0,
		Message:   "EX_OK",
		IsSpam:    isSpam,
		Score:     status.Score,
		Threshold: s.Reporter.Threshold,
	}

	switch req.Verb {
	case VerbCheck:
		// verdict only, no body
	case VerbSymbols:
		resp.Body = []byte(strings.Join(status.Hits, ","))
	case VerbReport:
		resp.Body = []byte(reporter.RenderTemplate(reporter.TemplateReport, status, s.Reporter))
	case VerbReportIfSpam:
		if isSpam {
			resp.Body = []byte(reporter.RenderTemplate(reporter.TemplateReport, status, s.Reporter))
		}
	case VerbProcess:
		subject := msg.Header("Subject")
		rep := reporter.Build(status, subject, msg.FullText(), s.Reporter)
		resp.Body = rewriteMessage(msg, rep)
	}

	return resp, nil
}

// rewriteMessage reassembles msg's original headers plus rep's added
// headers, a blank line, and either rep's replacement body or msg's
// original raw body, for PROCESS's full-message response.
func rewriteMessage(msg *message.Message, rep reporter.Report) []byte {
	var b strings.Builder
	for _, h := range msg.Headers() {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	for _, h := range rep.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")
	out := []byte(b.String())
	if rep.Body != nil {
		out = append(out, rep.Body...)
	} else {
		out = append(out, msg.RawBody()...)
	}
	return out
}

// ReadRequest parses one client request off r: request line, headers
// until a blank line, then exactly Content-length body bytes.
func ReadRequest(r io.Reader) (*Request, error) {
	tp := textproto.NewReader(bufio.NewReader(r))

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("protocol: reading request line: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("protocol: malformed request line %q", line)
	}
	req := &Request{Verb: Verb(fields[0]), Headers: make(map[string]string)}

	for {
		hdrLine, err := tp.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("protocol: reading headers: %w", err)
		}
		if hdrLine == "" {
			break
		}
		name, value, ok := strings.Cut(hdrLine, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	req.User = req.Headers["User"]

	n, err := strconv.Atoi(req.Headers["Content-length"])
	if err != nil {
		return nil, fmt.Errorf("protocol: missing or invalid Content-length")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(tp.R, body); err != nil {
		return nil, fmt.Errorf("protocol: reading body: %w", err)
	}
	req.Body = body

	return req, nil
}

// Response is one server reply: status line plus optional headers and
// body.
type Response struct {
	Code      int
	Message   string
	IsSpam    bool
	Score     float64
	Threshold float64
	Body      []byte
}

// WriteResponse renders resp onto w using the protocol's exact wire
// format, rendering Score/Threshold with a literal '.' decimal
// separator regardless of host locale (strconv.FormatFloat is always
// locale-independent, unlike fmt's %f under some C-locale-aware
// bindings), per spec §4.7's byte-exact note.
func WriteResponse(w io.Writer, resp *Response) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "SPAMD/%s %d %s\r\n", Version, resp.Code, resp.Message)
	fmt.Fprintf(bw, "Spam: %s ; %s / %s\r\n",
		boolStr(resp.IsSpam),
		strconv.FormatFloat(resp.Score, 'f', 1, 64),
		strconv.FormatFloat(resp.Threshold, 'f', 1, 64),
	)
	if resp.Body != nil {
		fmt.Fprintf(bw, "Content-length: %d\r\n\r\n", len(resp.Body))
		bw.Write(resp.Body)
	} else {
		bw.WriteString("\r\n")
	}
	return bw.Flush()
}

func boolStr(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
