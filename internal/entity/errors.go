package entity

import (
	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
)

// Sentinel errors for the serving plane's stable, client-facing failure
// kinds (spec.md §7). Each is a base apperr.Error; call sites wrap it with
// apperr.Wrap to attach request-specific context, the same way
// rdb/errors.go wraps apperr.ErrNotFound. The HTTP adapter matches these
// with errors.Is to recover the kind string and status code, since the
// kind alphabet is coarser than the apperr.Code alphabet (four credential
// failures all carry codes.Unauthenticated, for instance).
var (
	ErrValidationFailed    = apperr.New(codes.InvalidArgument, "validation failed")
	ErrMalformedCredential = apperr.New(codes.Unauthenticated, "malformed credential")
	ErrUnknownCredential   = apperr.New(codes.Unauthenticated, "unknown credential")
	ErrRevokedCredential   = apperr.New(codes.Unauthenticated, "revoked credential")
	ErrExpiredCredential   = apperr.New(codes.Unauthenticated, "expired credential")
	ErrScopeInsufficient   = apperr.New(codes.PermissionDenied, "scope insufficient")
	ErrIPNotAllowed        = apperr.New(codes.PermissionDenied, "ip not allowed")
	ErrStaleEvent          = apperr.New(codes.Aborted, "stale event")
	ErrUpstreamUnavailable = apperr.New(codes.Unavailable, "upstream unavailable")
)
