// Package log builds the slog loggers used by gemirror.
//
// Every logger wraps its text or JSON handler in a RedactHandler. A mirror
// run may be configured with a session cookie or an Authorization header
// to reach protected sections of a site, and URLs may carry credentials
// in their userinfo. None of that should end up in a log file that is
// shared when reporting a broken page.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	logger.Info("page converted", "url", pageURL, "target", target)
//	logger.Debug("request", "cookie", cookie) // cookie=***REDACTED***
package log
