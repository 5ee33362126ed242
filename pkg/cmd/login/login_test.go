package login

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbiotel/biotel-monitor-go/pkg/auth"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth/store"
)

func TestCallbackHandlerSecondRedirectDoesNotBlock(t *testing.T) {
	tokenStore, err := store.New("/state", store.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	session := auth.NewSession(tokenStore)

	results := make(chan error, 1)
	handler := callbackHandler(session, results)

	newRequest := func() *http.Request {
		return httptest.NewRequest(http.MethodGet,
			"/callback?error=access_denied", nil)
	}
	handler(httptest.NewRecorder(), newRequest())

	// the result channel is full now; a retried redirect must still return
	done := make(chan struct{})
	go func() {
		handler(httptest.NewRecorder(), newRequest())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second redirect blocked on the result channel")
	}

	var authErr *auth.AuthError
	require.ErrorAs(t, <-results, &authErr)
	assert.Equal(t, auth.CodeProviderDenied, authErr.Code)
}

func TestCallbackHandlerNonCallbackKeepsWaiting(t *testing.T) {
	tokenStore, err := store.New("/state", store.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	session := auth.NewSession(tokenStore)

	results := make(chan error, 1)
	handler := callbackHandler(session, results)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case err := <-results:
		t.Fatalf("unexpected result %v for a non-callback request", err)
	default:
	}
}
