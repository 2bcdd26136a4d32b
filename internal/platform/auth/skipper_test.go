package auth

import "testing"

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/health", "/health/db", "/metrics", "/appointment/guest-book"} {
		if !IsPublicPath(p) {
			t.Errorf("expected %s to be public", p)
		}
	}
	for _, p := range []string{"/bill", "/appointment/book", "/visit/create"} {
		if IsPublicPath(p) {
			t.Errorf("expected %s to require auth", p)
		}
	}
}
