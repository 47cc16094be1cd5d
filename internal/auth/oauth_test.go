package auth

import (
	"strings"
	"testing"
)

func TestOAuthProviderSubjectID(t *testing.T) {
	p := NewGoogleOAuth("client", "secret", "http://localhost/callback")

	got := p.SubjectID(&GoogleUserInfo{ID: "108123456789"})
	if got != "google:108123456789" {
		t.Errorf("SubjectID = %q, want %q", got, "google:108123456789")
	}
	if !strings.HasPrefix(got, p.Name()+":") {
		t.Errorf("SubjectID %q should be namespaced by provider %q", got, p.Name())
	}
}

func TestOAuthProviderLoginURLCarriesState(t *testing.T) {
	p := NewGoogleOAuth("client", "secret", "http://localhost/callback")

	url := p.LoginURL("xyzzy")
	if !strings.Contains(url, "state=xyzzy") {
		t.Errorf("LoginURL %q should carry the state parameter", url)
	}
	if !strings.Contains(url, "client_id=client") {
		t.Errorf("LoginURL %q should carry the client ID", url)
	}
}
