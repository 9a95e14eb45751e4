// Package log builds the slog loggers used by queuelab. Every record passes
// through SecureHandler, which masks:
//   - attributes under credential-like keys (cookie, authorization, anon_key)
//   - values that look like secrets on their own (JWTs, bearer tokens, provider keys)
//   - sensitive query parameters and userinfo passwords inside logged URLs
//
// Scenarios type into real forms, so fill steps log values through
// MaskFormValue, which hides anything typed into a password-like field.
// Masking also applies in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("filling field",
//	    "locator", loc,
//	    "value", log.MaskFormValue(loc, value),
//	)
package log
