package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bac-dam-1991/shopping-list/internal/auth"
	domainerrors "github.com/bac-dam-1991/shopping-list/internal/errors"
)

// requireSubject returns the authenticated subject from context.
// Returns 401 error if the request carried no valid token.
func requireSubject(ctx context.Context) (string, error) {
	sub := auth.SubjectFromContext(ctx)
	if sub == "" {
		return "", huma.Error401Unauthorized(domainerrors.ErrUnauthorized.Message)
	}
	return sub, nil
}
