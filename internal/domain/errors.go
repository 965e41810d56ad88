package domain

import "errors"

// Error taxonomy for the orchestration core. Callers distinguish these with
// errors.Is; the API layer maps them to status codes.
var (
	// ErrSessionNotFound means the referenced session code is absent. It is
	// terminal for the request, never retried internally.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTranslationActive means a streaming channel is already open for the
	// session. The original channel is unaffected.
	ErrTranslationActive = errors.New("translation already active for session")

	// ErrInvalidConfig means required session configuration is missing or
	// malformed.
	ErrInvalidConfig = errors.New("invalid session configuration")

	// ErrInvalidOffer means the supplied SDP offer is empty or undecodable.
	ErrInvalidOffer = errors.New("invalid sdp offer")

	// ErrUpstreamUnavailable means the external speech/avatar service could
	// not be reached or answered with a failure. Distinct from not-found so
	// callers can tell "your session doesn't exist" from "the cloud is down".
	ErrUpstreamUnavailable = errors.New("upstream speech service unavailable")
)
