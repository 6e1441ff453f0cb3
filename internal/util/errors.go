package util

import "errors"

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotPublished = errors.New("test not published or not accessible")
	ErrNoQuestions      = errors.New("test has no gradable questions")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptExists    = errors.New("an in-progress attempt already exists")
	ErrAttemptCompleted = errors.New("attempt already submitted")
	ErrAttemptFrozen    = errors.New("attempt is frozen, no further mutation allowed")
	ErrSessionNotActive = errors.New("exam session is not active")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrStartLocked      = errors.New("another start request for this attempt is in flight")
	ErrPermissionDenied = errors.New("permission denied")
)
