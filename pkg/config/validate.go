package config

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// validate reports every setting that would make a process misbehave at
// runtime rather than fail at start, joined into one error.
func (c *Config) validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.JWT.ExpirationMinutes > 0, "%s must be positive", EnvJWTExpMins)
	check(c.JWT.RefreshTokenTTLMinutes > 0, "%s must be positive", EnvRefreshTokenTTLMinutes)
	check(c.OTP.CodeLength >= 4 && c.OTP.CodeLength <= 10, "otp code length %d outside 4..10", c.OTP.CodeLength)
	check(c.Cart.MaxItemQuantity > 0, "%s must be positive", EnvCartMaxQty)
	check(c.Cart.MaxMergeItems > 0, "cart max merge items must be positive")
	check(c.Cart.MergeLockTTL > 0, "cart merge lock ttl must be positive")
	check(c.Outbox.BatchSize > 0, "outbox batch size must be positive")
	check(c.Outbox.MaxAttempts > 0, "outbox max attempts must be positive")
	check(strings.TrimSpace(c.PubSub.EventsTopic) != "", "%s must not be empty", EnvEventsTopic)

	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		check(false, "unknown log format %q", c.App.LogFormat)
	}
	return errs
}
