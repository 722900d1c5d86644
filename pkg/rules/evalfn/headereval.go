package evalfn

import (
	"context"
	"strings"

	"github.com/zpam/spamd/pkg/headers"
	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/tracker"
)

// HeaderChecks adapts the teacher's SPF/DKIM/DMARC/routing validator
// into the registry's local eval-callback shape, so header-eval rules
// like "check_for_spf_fail()" dispatch to pkg/headers.Validator instead
// of a bespoke scorer.
type HeaderChecks struct {
	validator *headers.Validator
}

// NewHeaderChecks wraps v (nil uses headers.DefaultConfig()).
func NewHeaderChecks(v *headers.Validator) *HeaderChecks {
	if v == nil {
		v = headers.NewValidator(headers.DefaultConfig())
	}
	return &HeaderChecks{validator: v}
}

// headerMap groups every header occurrence by name, preserving order,
// so the validator's routing analysis sees every Received hop instead
// of only the last one.
func headerMap(msg *message.Message) map[string][]string {
	out := make(map[string][]string)
	for _, h := range msg.Headers() {
		out[h.Name] = append(out[h.Name], h.Value)
	}
	return out
}

// Register installs check_for_spf_fail, check_for_dkim_missing, and
// check_for_dmarc_fail under reg.
func (h *HeaderChecks) Register(reg *Registry) error {
	if err := reg.RegisterLocal("check_for_spf_fail", h.spfFail); err != nil {
		return err
	}
	if err := reg.RegisterLocal("check_for_dkim_missing", h.dkimMissing); err != nil {
		return err
	}
	if err := reg.RegisterLocal("check_for_dmarc_fail", h.dmarcFail); err != nil {
		return err
	}
	return nil
}

func (h *HeaderChecks) spfFail(ctx context.Context, msg *message.Message, args []string) (bool, error) {
	result := h.validator.ValidateHeaders(headerMap(msg))
	return strings.EqualFold(result.SPF.Result, "fail"), nil
}

func (h *HeaderChecks) dkimMissing(ctx context.Context, msg *message.Message, args []string) (bool, error) {
	result := h.validator.ValidateHeaders(headerMap(msg))
	return len(result.DKIM.Signatures) == 0, nil
}

func (h *HeaderChecks) dmarcFail(ctx context.Context, msg *message.Message, args []string) (bool, error) {
	result := h.validator.ValidateHeaders(headerMap(msg))
	return result.DMARC.Policy == "reject" && !result.DMARC.Valid, nil
}

// SenderFrequency adapts the teacher's sender-frequency tracker into a
// header-eval callback, check_for_sender_frequency(), which fires once
// a sender's recent message rate crosses the tracker's threshold.
type SenderFrequency struct {
	tracker *tracker.FrequencyTracker
}

// NewSenderFrequency wraps t (nil builds a 60-minute/10000-entry tracker).
func NewSenderFrequency(t *tracker.FrequencyTracker) *SenderFrequency {
	if t == nil {
		t = tracker.NewFrequencyTracker(60, 10000)
	}
	return &SenderFrequency{tracker: t}
}

// Register installs check_for_sender_frequency under reg.
func (s *SenderFrequency) Register(reg *Registry) error {
	return reg.RegisterLocal("check_for_sender_frequency", s.check)
}

func (s *SenderFrequency) check(ctx context.Context, msg *message.Message, args []string) (bool, error) {
	from := msg.Header("From")
	domain := ""
	if idx := strings.LastIndex(from, "@"); idx >= 0 {
		domain = strings.ToLower(strings.TrimSuffix(from[idx+1:], ">"))
	}
	result := s.tracker.TrackSender(from, domain, false)
	return result.IsFrequentSender, nil
}
