// Package log provides structured event logging for the LABWIRE stack.
//
// Components emit Event values describing transport frames, wire
// messages, data-channel publications, state changes, and errors.
// Applications decide what to do with them: discard (NoopLogger),
// forward to log/slog (SlogAdapter), or fan out (MultiLogger).
//
// Logging is always best-effort. No code path in this module lets a
// logging failure propagate into an attribute operation.
package log
