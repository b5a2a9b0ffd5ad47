// Package connect exposes the scheduler's command surface as Connect RPCs.
package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuthInterceptor creates an interceptor that validates the admin
// token from request metadata. An empty expected token rejects every call.
func NewAdminAuthInterceptor(expected string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token := req.Header().Get(AdminTokenHeader)
			if token == "" || expected == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			return next(ctx, req)
		}
	}
}

// NewTokenInterceptor creates a client interceptor attaching the admin token.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set(AdminTokenHeader, token)
			}
			return next(ctx, req)
		}
	}
}
