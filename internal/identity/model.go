package identity

import (
	"errors"
	"time"
)

var (
	ErrIdentityExists     = errors.New("identity already exists")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakSecret         = errors.New("secret must be at least 8 characters")
)

// Identity is an addressable participant: a funder, an owner, or both.
type Identity struct {
	Address    string
	Label      string
	SecretHash []byte
	CreatedAt  time.Time
}

// Registration request structure. An empty Secret is generated.
type Registration struct {
	Label  string
	Secret string
}
