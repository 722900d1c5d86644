package milter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/d--j/go-milter"
	"github.com/zpam/spamd/pkg/classifier"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/reporter"
	"github.com/zpam/spamd/pkg/rules"
)

// Handler implements the milter.Milter interface, feeding each SMTP
// message through the spec's rule engine and Bayesian classifier
// instead of the teacher's hand-rolled weighted-feature scorer.
type Handler struct {
	milter.NoOpMilter
	config      *config.Config
	classifier  *classifier.Service
	reporterCfg reporter.Config

	// Message data accumulated across the milter callbacks for one
	// SMTP transaction.
	headerLines []string
	body        bytes.Buffer

	startTime time.Time
}

// NewHandler creates a new milter handler backed by svc.
func NewHandler(cfg *config.Config, svc *classifier.Service) *Handler {
	return &Handler{
		config:      cfg,
		classifier:  svc,
		reporterCfg: reporterConfigFromMilter(cfg),
		startTime:   time.Now(),
	}
}

func reporterConfigFromMilter(cfg *config.Config) reporter.Config {
	rc := reporter.DefaultConfig()
	rc.Threshold = float64(cfg.Detection.SpamThreshold) * 1.25
	return rc
}

// NewConnection is called when a new SMTP connection is established.
func (h *Handler) NewConnection(m milter.Modifier) error {
	h.startTime = time.Now()
	return nil
}

// Connect is called when connection information is available.
func (h *Handler) Connect(host string, family string, port uint16, addr string, m milter.Modifier) (*milter.Response, error) {
	return milter.RespContinue, nil
}

// Helo is called when HELO/EHLO is received.
func (h *Handler) Helo(name string, m milter.Modifier) (*milter.Response, error) {
	return milter.RespContinue, nil
}

// MailFrom resets the per-message buffers for a new transaction.
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.headerLines = nil
	h.body.Reset()
	return milter.RespContinue, nil
}

// RcptTo is called for each RCPT TO; recipients aren't scored, so no
// state is kept beyond milter's own SMTP handling.
func (h *Handler) RcptTo(rcptTo string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	return milter.RespContinue, nil
}

// Data is called when the DATA command is received.
func (h *Handler) Data(m milter.Modifier) (*milter.Response, error) {
	return milter.RespContinue, nil
}

// Header accumulates one raw header line for the eventual message.Parse.
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	h.headerLines = append(h.headerLines, name+": "+value)
	return milter.RespContinue, nil
}

// Headers is called once all headers have been received.
func (h *Handler) Headers(m milter.Modifier) (*milter.Response, error) {
	return milter.RespContinue, nil
}

// BodyChunk accumulates one body chunk.
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.body.Write(chunk)
	return milter.RespContinue, nil
}

// EndOfMessage runs the classifier against the accumulated message and
// acts on the result.
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	raw := buildRawMessage(h.headerLines, h.body.Bytes())
	msg, err := message.Parse(raw)
	if err != nil {
		return milter.RespTempFail, fmt.Errorf("milter: failed to parse message: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := h.classifier.Classify(ctx, msg)
	if err != nil {
		return milter.RespTempFail, fmt.Errorf("milter: classification failed: %v", err)
	}

	if h.config.Milter.AddSpamHeaders {
		rep := reporter.Build(status, msg.Header("Subject"), msg.RawBody(), h.reporterCfg)
		for _, hdr := range rep.Headers {
			if err := m.AddHeader(hdr.Name, hdr.Value); err != nil {
				return milter.RespTempFail, fmt.Errorf("milter: failed to add spam headers: %v", err)
			}
		}
	}

	return h.determineAction(status), nil
}

// Abort resets per-message state when a transaction is aborted.
func (h *Handler) Abort(m milter.Modifier) error {
	h.headerLines = nil
	h.body.Reset()
	return nil
}

// Cleanup is called when the connection is closed.
func (h *Handler) Cleanup(m milter.Modifier) {
}

func buildRawMessage(headerLines []string, body []byte) []byte {
	var b bytes.Buffer
	for _, line := range headerLines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// determineAction maps the classified score onto the milter accept/
// quarantine/reject ladder the teacher's config already exposes.
func (h *Handler) determineAction(status *rules.PerMsgStatus) *milter.Response {
	score := status.Score
	rejectAt := float64(h.config.Milter.RejectThreshold) * 1.25
	quarantineAt := float64(h.config.Milter.QuarantineThreshold) * 1.25

	if score >= rejectAt {
		rejectMsg := h.config.Milter.RejectMessage
		if rejectMsg == "" {
			rejectMsg = fmt.Sprintf("5.7.1 Message rejected as spam (score: %.1f)", score)
		}
		resp, _ := milter.RejectWithCodeAndReason(550, rejectMsg)
		return resp
	}

	if h.config.Milter.CanQuarantine && score >= quarantineAt {
		// Note: quarantine placement is left to the MTA's milter-driven
		// routing; the spam headers already added tell it to route.
		return milter.RespContinue
	}

	return milter.RespContinue
}
