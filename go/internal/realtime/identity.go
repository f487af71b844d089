package realtime

import "net/http"

// IdentityResolver maps an incoming connection to a stable user ID. It
// never fails: implementations fall back to the connection ID so every
// connection always has some identity.
type IdentityResolver interface {
	Resolve(r *http.Request, connectionID string) string
}

// HeaderIdentityResolver resolves identity from the X-User-Id header,
// then the user_id query parameter, then the connection ID. Swapped for
// a token-validating resolver when a real auth layer fronts the server.
type HeaderIdentityResolver struct{}

func (HeaderIdentityResolver) Resolve(r *http.Request, connectionID string) string {
	if uid := r.Header.Get("X-User-Id"); uid != "" {
		return uid
	}
	if uid := r.URL.Query().Get("user_id"); uid != "" {
		return uid
	}
	return connectionID
}
