package reporter

import (
	"strconv"
	"strings"

	"github.com/zpam/spamd/pkg/rules"
)

// Template bodies are plain strings with literal, non-recursive
// placeholder substitution (_HITS_, _REQD_, _SUMMARY_, _VER_, _HOME_),
// per spec §4.5. Each is a standalone string, not built from the
// others, matching the "append-accumulated, no recursion" contract.
const (
	TemplateReport = `Content analysis details:   (_HITS_ points, _REQD_ required)

` + reportSentinel + `
_SUMMARY_`

	TemplateUnsafeReport = `Spam detection software, running on the system "_HOME_", has
identified this incoming email as possible spam. The original
message has been attached to this so you can view it or label
similar future email. If you have any questions, see the
administrator of that system for details.

Content preview:  _SUMMARY_

Content analysis details:   (_HITS_ points, _REQD_ required)

` + reportSentinel

	TemplateTerseReport = `_HITS_/_REQD_`

	TemplateSpamtrap = `This message was caught by a spam trap. (_HITS_ points, _REQD_
required, version _VER_)

_SUMMARY_`
)

// RenderTemplate substitutes tmpl's placeholders from status and cfg:
// _HITS_ and _REQD_ are one-decimal floats, _SUMMARY_ is status.Log
// joined one rule per line, _VER_ and _HOME_ come from cfg. Unknown
// placeholders are left untouched; substitution does not recurse into
// its own output.
func RenderTemplate(tmpl string, status *rules.PerMsgStatus, cfg Config) string {
	r := strings.NewReplacer(
		"_HITS_", strconv.FormatFloat(status.Score, 'f', 1, 64),
		"_REQD_", strconv.FormatFloat(cfg.Threshold, 'f', 1, 64),
		"_SUMMARY_", strings.Join(status.Log, "\n"),
		"_VER_", cfg.Version,
		"_HOME_", cfg.Home,
	)
	return r.Replace(tmpl)
}
