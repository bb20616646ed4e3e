package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8

	passwordSpecials = "@$!%*?&"
)

func checkEmail(v *pkgerrors.ValidationError, email string) {
	if strings.TrimSpace(email) == "" {
		v.Add("email", "email is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		v.Add("email", "email is invalid")
	}
}

func checkUsername(v *pkgerrors.ValidationError, username string) {
	if strings.TrimSpace(username) == "" {
		v.Add("username", "username is required")
		return
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		v.Add("username", "username must be between 3 and 30 characters")
	}
}

func checkPassword(v *pkgerrors.ValidationError, password string) {
	if password == "" {
		v.Add("password", "password is required")
		return
	}
	if !validPassword(password) {
		v.Add("password", pkgerrors.ErrInvalidPassword.Error())
	}
}

// validPassword requires at least 8 characters drawn only from ASCII letters,
// digits and @$!%*?&, with one of each class present.
func validPassword(password string) bool {
	if len(password) < minPasswordLen {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}
