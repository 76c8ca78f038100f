package testutil

import (
	"net/http"
	"time"

	id "bloodbank/pkg/domain"
	"bloodbank/pkg/requestcontext"
)

// WithPrincipal scopes the request to org and actor, as the auth middleware does.
func WithPrincipal(req *http.Request, org id.OrgID, actor id.ActorID) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), org, actor))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
