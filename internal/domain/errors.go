package domain

import "errors"

// Failure taxonomy. Authentication failures terminate the connection;
// everything else is reported to the originating connection only.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not the resource owner")
	ErrNotFound       = errors.New("not found")
	ErrDelivery       = errors.New("delivery failed")
	ErrUpstream       = errors.New("upstream failure")
	ErrValidation     = errors.New("invalid payload")
)
