package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailDomain        = errors.New("auth: email domain not allowed")
	ErrAlreadyExists      = errors.New("auth: already exists")
)
