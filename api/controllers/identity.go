package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/api/middleware"
	cartsvc "github.com/dfrestrepo/mercaflow-backend/internal/cart"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

func authenticatedUserID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

// cartOwnership resolves the acting cart owner: the authenticated user when a
// token was presented, else the guest session header. Both absent is still a
// valid outcome; the cart service mints a session id on creation paths and
// rejects the rest.
func cartOwnership(ctx context.Context) (cartsvc.Ownership, error) {
	owner := cartsvc.Ownership{}

	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return owner, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		owner.UserID = &userID
	}
	if session := middleware.CartSessionFromContext(ctx); session != "" {
		owner.SessionID = &session
	}
	return owner, nil
}

// middlewareCartSession prefers the context value seeded by OptionalAuth and
// falls back to the raw header on routes that require authentication.
func middlewareCartSession(r *http.Request) string {
	if session := middleware.CartSessionFromContext(r.Context()); session != "" {
		return session
	}
	return strings.TrimSpace(r.Header.Get(middleware.CartSessionHeader))
}
