package grant

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/storage"
)

func testImplicitGrant(t *testing.T) *Implicit {
	t.Helper()
	g := NewImplicit()
	if err := g.Init(testCore(t, testStore(t))); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return g
}

// parseFragment extracts the form-encoded fragment of a redirect URI.
func parseFragment(t *testing.T, uri string) url.Values {
	t.Helper()
	idx := strings.Index(uri, "#")
	if idx < 0 {
		t.Fatalf("redirect %q has no fragment", uri)
	}
	values, err := url.ParseQuery(uri[idx+1:])
	if err != nil {
		t.Fatalf("fragment is not form-encoded: %v", err)
	}
	return values
}

func TestImplicitGrant(t *testing.T) {
	g := testImplicitGrant(t)
	ctx := context.Background()

	ar, err := g.ValidateAuthorizationRequest(ctx, request.AuthorizeParams{
		ResponseType: "token",
		ClientID:     "web-app",
		State:        "xyz",
		Scopes:       []string{"read"},
	})
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}
	ar.User = &storage.User{ID: "user-1"}
	ar.Approved = true

	resp, err := g.CompleteAuthorizationRequest(ctx, ar)
	if err != nil {
		t.Fatalf("CompleteAuthorizationRequest() error = %v", err)
	}
	redirect := resp.(*response.Redirect)

	if strings.Contains(redirect.URI, "?access_token") {
		t.Errorf("redirect %q delivers the token in the query string", redirect.URI)
	}
	frag := parseFragment(t, redirect.URI)

	if len(frag.Get("access_token")) != 80 {
		t.Errorf("access_token length = %d, want 80", len(frag.Get("access_token")))
	}
	if frag.Get("token_type") != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", frag.Get("token_type"))
	}
	if frag.Get("expires_in") == "" {
		t.Error("expires_in missing from the fragment")
	}
	if frag.Get("scope") != "read" {
		t.Errorf("scope = %q, want read", frag.Get("scope"))
	}
	if frag.Get("state") != "xyz" {
		t.Errorf("state = %q, want preserved", frag.Get("state"))
	}
}

func TestImplicitGrantDenied(t *testing.T) {
	g := testImplicitGrant(t)
	ctx := context.Background()

	ar, err := g.ValidateAuthorizationRequest(ctx, request.AuthorizeParams{
		ResponseType: "token",
		ClientID:     "web-app",
		State:        "xyz",
	})
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}
	ar.User = &storage.User{ID: "user-1"}
	ar.Approved = false

	_, err = g.CompleteAuthorizationRequest(ctx, ar)
	oerr := asProtocolError(t, err, oauthkit.ErrorCodeAccessDenied)
	if !oerr.UseFragment {
		t.Error("UseFragment = false, want fragment-encoded denial for the implicit flow")
	}

	frag := parseFragment(t, oerr.RedirectURI)
	if frag.Get("state") != "xyz" {
		t.Errorf("state = %q, want preserved on the denial redirect", frag.Get("state"))
	}
}

func TestImplicitGrantScopeErrorUsesFragment(t *testing.T) {
	g := testImplicitGrant(t)

	_, err := g.ValidateAuthorizationRequest(context.Background(), request.AuthorizeParams{
		ResponseType: "token",
		ClientID:     "web-app",
		Scopes:       []string{"nonexistent"},
	})
	oerr := asProtocolError(t, err, oauthkit.ErrorCodeInvalidScope)
	if !oerr.UseFragment {
		t.Error("UseFragment = false, want fragment-encoded scope error")
	}
}

func TestImplicitGrantHasNoTokenExchange(t *testing.T) {
	g := testImplicitGrant(t)

	if g.CanRespondToAccessTokenRequest(request.TokenParams{GrantType: "implicit"}) {
		t.Error("implicit grant claimed a token request")
	}
	if _, err := g.RespondToAccessTokenRequest(context.Background(), request.TokenParams{}); err == nil {
		t.Error("RespondToAccessTokenRequest() succeeded on the implicit grant")
	}
}

func TestImplicitGrantWithoutUser(t *testing.T) {
	g := testImplicitGrant(t)
	ctx := context.Background()

	ar, err := g.ValidateAuthorizationRequest(ctx, request.AuthorizeParams{
		ResponseType: "token",
		ClientID:     "web-app",
	})
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}
	ar.Approved = true

	if _, err := g.CompleteAuthorizationRequest(ctx, ar); err == nil {
		t.Error("CompleteAuthorizationRequest() succeeded without a user")
	}
}
