// Package session carries the signed-in viewer's identity through
// request handling. A nil *Session means signed out; operations that
// need an identity reject before issuing any store write.
package session

// Session is the viewer identity established at sign-in. Read-only to
// everything but the auth layer.
type Session struct {
	UserID string
	Name   string
	Avatar string
}

// SignedIn reports whether the session carries an identity.
func (s *Session) SignedIn() bool {
	return s != nil && s.UserID != ""
}

// ViewerID returns the session's user id, or "" when signed out.
func (s *Session) ViewerID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}
