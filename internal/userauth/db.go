package userauth

import (
	"context"
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user with such username already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredentials    = errors.New("invalid username or password")
)

type DB interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
}
