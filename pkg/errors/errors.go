package errors

import (
	"errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNilUser            = errors.New("user is nil")
	ErrEmailTaken         = errors.New("email already in use")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("password must be at least 8 characters with an uppercase letter, a lowercase letter, a digit and one of @$!%*?&")
	ErrInvalidInput       = errors.New("invalid input")

	ErrSubjectNotFound   = errors.New("subject not found")
	ErrAlreadySubscribed = errors.New("already subscribed to this subject")

	ErrArticleNotFound = errors.New("article not found")
	ErrNilArticle      = errors.New("article is nil")
	ErrNilComment      = errors.New("comment is nil")

	ErrInvalidToken  = errors.New("invalid token")
	ErrUnauthorized  = errors.New("authentication required")
	ErrMissingSecret = errors.New("JWT secret not set")
	ErrInvalidTTL    = errors.New("JWT expiration must be at least one millisecond")

	ErrInternal = errors.New("internal error")
)
