/*
Package errs provides the application error type and its numeric business codes.

Codes are grouped by range so clients can branch on them without parsing messages.
*/
package errs

// 1xxx: request handling
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unexpected Content-Type.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after a valid JSON document.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates an unparsable URL-encoded form.
	ErrFormParseFailed = 1005

	ErrRateLimitExceeded = 1007

	ErrNotFound = 1404
)

// 3xxx: identity, session and anti-abuse
const (
	ErrPowChallengeRequired = 3001
	ErrPowChallengeInvalid  = 3002

	// ErrUnauthenticated is returned when a request or WebSocket handshake carries no logged-in session.
	ErrUnauthenticated = 3101

	ErrInvalidCredentials = 3102
	ErrUserAlreadyExists  = 3103
	ErrInvalidUsername    = 3104
	ErrInvalidPassword    = 3105
)

// 5xxx: internal
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the session or credential store could not be reached.
	ErrStoreUnavailable = 5003
)
