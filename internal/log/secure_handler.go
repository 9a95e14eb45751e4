package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// defaultKeys are attribute keys, header names and query parameters whose
// value is always masked. Matching is case-insensitive.
var defaultKeys = []string{
	// Request headers a page or dev server may echo back
	"authorization", "proxy-authorization", "cookie", "set-cookie",
	"x-api-key", "x-auth-token",

	// Generic credentials
	"password", "passwd", "secret", "token", "auth", "credential", "credentials",
	"api_key", "apikey", "api-key", "access_token", "refresh_token",
	"private_key", "privatekey", "secret_key", "secretkey",

	// Session identifiers
	"session", "session_id", "sessionid", "sid", "jsessionid",

	// Hosted backends the site under test talks to
	"anon_key", "service_role", "service_role_key", "client_secret",
}

// defaultKeywords mark a key or form locator as sensitive when they appear
// anywhere in it. The bare word "key" is excluded: it matches "primary_key",
// "hotkey" and observation names such as "logos.key".
var defaultKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "otp", "card number", "cvc",
}

// defaultPatterns match values that are secrets whatever key they are
// logged under.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^(ghp|gho|ghs|github_pat)_[A-Za-z0-9_]{20,}$`),
	regexp.MustCompile(`^(sk|rk|pk)_(live|test)_[A-Za-z0-9]{16,}$`),
	regexp.MustCompile(`^xox[abpr]-[A-Za-z0-9-]{10,}$`),
	regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// redactor decides which keys and values are masked.
type redactor struct {
	keys     map[string]struct{}
	keywords []string
	patterns []*regexp.Regexp
}

// newRedactor returns a redactor with the default rules plus extra keys.
func newRedactor(extra ...string) *redactor {
	r := &redactor{
		keys:     make(map[string]struct{}, len(defaultKeys)+len(extra)),
		keywords: defaultKeywords,
		patterns: defaultPatterns,
	}
	for _, k := range defaultKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	return r
}

// sensitiveKey reports whether a value logged under key must be masked.
func (r *redactor) sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := r.keys[lower]; ok {
		return true
	}
	return containsKeyword(r.keywords, lower)
}

// sensitiveValue reports whether value looks like a secret on its own.
func (r *redactor) sensitiveValue(value string) bool {
	for _, p := range r.patterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURL masks sensitive query parameters and the userinfo password of
// an http(s) URL. Other strings are returned unchanged.
func (r *redactor) redactURL(value string) string {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil {
		return value
	}

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			name, _, _ := strings.Cut(pair, "=")
			unescaped, err := url.QueryUnescape(name)
			if err != nil {
				unescaped = name
			}
			if r.sensitiveKey(unescaped) {
				pairs[i] = name + "=" + MaskValue
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}
	return u.Redacted()
}

// attr returns a, masked where needed. Groups are walked recursively.
func (r *redactor) attr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = r.attr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if r.sensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	if r.sensitiveValue(s) {
		return slog.String(a.Key, MaskValue)
	}
	if masked := r.redactURL(s); masked != s {
		return slog.String(a.Key, masked)
	}
	return a
}

func containsKeyword(keywords []string, s string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	extraKeys []string
}

// WithSensitiveKeys masks values logged under the given keys in addition to
// the defaults, for example the names of project-specific environment keys.
func WithSensitiveKeys(keys ...string) HandlerOption {
	return func(o *handlerOptions) {
		o.extraKeys = append(o.extraKeys, keys...)
	}
}

// SecureHandler wraps an slog.Handler and masks sensitive attributes before
// records reach it. Masking applies to attributes added with Logger.With as
// well as to per-record attributes; scenario URLs keep their host and path
// with only credentials removed.
type SecureHandler struct {
	handler slog.Handler
	r       *redactor
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is wrapped.
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	o := &handlerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &SecureHandler{handler: handler, r: newRedactor(o.extraKeys...)}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.r.attr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs returns a handler with the masked attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.r.attr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked), r: h.r}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), r: h.r}
}

var formRedactor = newRedactor()

// MaskFormValue returns value, or MaskValue when the field described by
// locator (a label, selector or input name) looks like it holds a secret.
// Steps that type into form fields log their value through this.
func MaskFormValue(locator, value string) string {
	lower := strings.ToLower(locator)
	if containsKeyword(formRedactor.keywords, lower) ||
		strings.Contains(lower, `type="password"`) ||
		strings.Contains(lower, "type='password'") ||
		formRedactor.sensitiveValue(value) {
		return MaskValue
	}
	return value
}

// levelFor maps the --verbose flag to a minimum level.
func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger returns a text logger writing to w whose records pass
// through a SecureHandler. Verbose enables Debug; otherwise only warnings
// and errors are written.
func NewSecureLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(text, opts...))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per record,
// for runs whose stderr is collected by CI.
func NewSecureJSONLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	j := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(j, opts...))
}
