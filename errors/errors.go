package errors

import "fmt"

var (
	ErrEmptyMessage          = fmt.Errorf("message body is empty")
	ErrSelfAddressed         = fmt.Errorf("sender and receiver are the same user")
	ErrValidationRejected    = fmt.Errorf("message draft rejected")
	ErrNoCounterpartSelected = fmt.Errorf("no counterpart selected")
	ErrStoreUnavailable      = fmt.Errorf("message store unavailable")
	ErrMessageNotFound       = fmt.Errorf("message not found")
	ErrFeedClosed            = fmt.Errorf("feed is closed")
	ErrSessionClosed         = fmt.Errorf("session is closed")
	ErrInvalidToken          = fmt.Errorf("invalid session token")
	ErrWorkerPanic           = fmt.Errorf("worker panic")
)
