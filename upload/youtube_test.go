package upload

import (
	"context"
	"testing"

	"storyreel-pipeline/config"
)

func TestOAuthClientRequiresAllCredentials(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "id")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "")

	u := New(config.Default())
	if _, err := u.getOAuthClient(context.Background()); err == nil {
		t.Fatal("expected error when a credential is missing")
	}
}

func TestOAuthClientBuildsHTTPClient(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "id")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "refresh")

	u := New(config.Default())
	client, err := u.getOAuthClient(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The service constructor needs a plain *http.Client whose transport
	// injects the refreshed token
	if client == nil || client.Transport == nil {
		t.Fatal("expected an authenticated HTTP client")
	}
}
