// Package security is the envelope around every mutation entry point:
// input validation and sanitization, per-player sliding-window rate
// limiting, append-only audit logging, field-level authenticated
// encryption, and short-lived scoped session tokens.
package security
