package util

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrUserSuspended    = errors.New("account suspended")
	ErrPermissionDenied = errors.New("permission denied")

	ErrCourseNotFound   = errors.New("course not found")
	ErrNotEnrolled      = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled  = errors.New("already enrolled in this course")
	ErrTopicOrderTaken  = errors.New("topic order already used in this course")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizExists       = errors.New("topic already has a quiz")
	ErrQuizHasAttempts  = errors.New("cannot delete quiz with existing attempts")
	ErrQuizNotAvailable = errors.New("quiz not available yet")

	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAttemptNotOwned        = errors.New("attempt belongs to another student")
	ErrAttemptCompleted       = errors.New("attempt already completed")
	ErrAttemptExpired         = errors.New("attempt has expired")
	ErrAttemptNotCompleted    = errors.New("attempt not yet completed")
	ErrInvalidChoiceSelection = errors.New("invalid choice selection")
	ErrNoCurrentQuestion      = errors.New("no current question")
	ErrConcurrentSubmit       = errors.New("concurrent submission for the same question")

	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrWrongSecurityAnswer  = errors.New("security answer does not match")
	ErrNoSecurityQuestion   = errors.New("no security question configured")
	ErrCatalogInconsistency = errors.New("quiz catalog data missing or inconsistent")
)
