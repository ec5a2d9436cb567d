package logging

import (
	"log/slog"
	"regexp"
	"strconv"

	"github.com/m-mizutani/masq"
)

// MaxValueLen caps string attributes. Echoed remote payloads and imported
// documents are logged at debug level and can be arbitrarily large.
const MaxValueLen = 512

var (
	bearerPattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+$`)
	jwtPattern    = regexp.MustCompile(`^eyJ[\w-]*\.eyJ[\w-]*\.[\w-]*$`)
)

// RedactOptions lists what is masked before a record reaches any handler:
// credential-looking attribute names (exporter headers, proxy settings) and
// token-shaped values.
func RedactOptions() []masq.Option {
	return []masq.Option{
		masq.WithFieldName("authorization"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("cookie"),
		masq.WithFieldName("password"),
		masq.WithFieldName("token"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("headers"),
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(jwtPattern),
	}
}

// NewReplaceAttr returns the slog.HandlerOptions.ReplaceAttr used by every
// handler: masking first, then truncation of long strings.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	mask := masq.New(append(RedactOptions(), extra...)...)

	return func(groups []string, a slog.Attr) slog.Attr {
		a = mask(groups, a)

		if a.Value.Kind() == slog.KindString {
			if s := a.Value.String(); len(s) > MaxValueLen {
				a.Value = slog.StringValue(s[:MaxValueLen] + "…(+" + strconv.Itoa(len(s)-MaxValueLen) + " bytes)")
			}
		}

		return a
	}
}
