package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"worksafety/core/apperr"
	"worksafety/core/rbac"
	"worksafety/core/store"
)

type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Internal  bool   `json:"is_internal"`
	Superuser bool   `json:"is_superuser"`
}

// RegisterUser validates nu and stores an active user with a hashed password.
func RegisterUser(ctx context.Context, users store.UsersStore, nu NewUser) (*store.User, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperr.Invalid("email", "auth.emailInvalid", "a valid email address is required")
	}
	role := strings.ToLower(strings.TrimSpace(nu.Role))
	if !rbac.KnownRole(role) {
		return nil, apperr.Invalid("role", "auth.roleInvalid", "unknown role %q", nu.Role)
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return nil, err
	}
	u := &store.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(nu.FirstName),
		LastName:     strings.TrimSpace(nu.LastName),
		Phone:        strings.TrimSpace(nu.Phone),
		Role:         role,
		IsInternal:   nu.Internal,
		IsSuperuser:  nu.Superuser,
		Active:       true,
	}
	if _, err := users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrUniqueViolation) {
			return nil, apperr.Invalid("email", "auth.emailTaken", "a user with this email already exists")
		}
		return nil, err
	}
	return u, nil
}
