// Package logger wraps zap for the manager:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services take a context and log through the logger stored in it, so a
// pipeline run can tag every line with the application it works on.
package logger
