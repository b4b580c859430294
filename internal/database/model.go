package database

import (
	"github.com/alex65536/formgate/internal/userauth"
)

var models = []any{
	&userauth.User{},
}
