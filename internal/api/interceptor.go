package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nichepulse/nichepulse-go/internal/identity"
	"github.com/nichepulse/nichepulse-go/internal/logging"
)

// tokenPaths are the body fields probed for a rotated bearer token, in
// priority order. The response Authorization header wins over all of them.
var tokenPaths = []string{
	"token",
	"access_token",
	"jwt",
	"data.token",
	"data.access_token",
	"data.jwt",
}

// Interceptor reconciles identity state from every completed API response.
//
// It is passed into the client constructor as an explicit dependency rather
// than registered in a process-wide singleton, so wiring is testable and two
// clients can carry independent interceptors.
type Interceptor struct {
	Store *identity.Store
	// OnTokenUpdate fires after a changed token has been persisted.
	OnTokenUpdate func(token string)
	// OnUserUpdate fires after a changed user record has been persisted.
	OnUserUpdate func(user *identity.User)
	// OnUnauthorized fires after a 401 response has cleared the store.
	OnUnauthorized func()
	Logger         *logging.Logger
}

// Process inspects a completed (non-cancelled) response. Unauthorized
// responses clear the store; successful responses are mined for a rotated
// token and an updated user record. The remote service may adjust either as
// a side effect of any call, so this runs on every response, not just auth
// endpoints.
func (i *Interceptor) Process(status int, header http.Header, body []byte) {
	if i == nil || i.Store == nil {
		return
	}

	if status == http.StatusUnauthorized {
		if err := i.Store.Clear(); err != nil {
			i.log().WithError(err).Warn("failed to clear identity after 401")
		}
		if i.OnUnauthorized != nil {
			i.OnUnauthorized()
		}
		return
	}

	if status < 200 || status >= 300 {
		return
	}

	i.reconcileToken(header, body)
	i.reconcileUser(body)
}

func (i *Interceptor) reconcileToken(header http.Header, body []byte) {
	token := strings.TrimSpace(strings.TrimPrefix(header.Get("Authorization"), "Bearer "))
	if token == "" {
		for _, path := range tokenPaths {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				token = v.Str
				break
			}
		}
	}
	if token == "" || token == i.Store.Token() {
		return
	}

	if err := i.Store.SetToken(token); err != nil {
		i.log().WithError(err).Warn("failed to persist rotated token")
		return
	}
	if i.OnTokenUpdate != nil {
		i.OnTokenUpdate(token)
	}
}

func (i *Interceptor) reconcileUser(body []byte) {
	raw := findUserPayload(body)
	if raw == "" {
		return
	}

	var user identity.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		return
	}
	if user.Equal(i.Store.User()) {
		return
	}

	if err := i.Store.SetUser(&user); err != nil {
		i.log().WithError(err).Warn("failed to persist updated user")
		return
	}
	if i.OnUserUpdate != nil {
		i.OnUserUpdate(&user)
	}
}

// findUserPayload locates the user object in a response body: an explicit
// user field first, then the data object itself when it carries both an
// identifier and an email.
func findUserPayload(body []byte) string {
	for _, path := range []string{"user", "data.user"} {
		if v := gjson.GetBytes(body, path); v.IsObject() {
			return v.Raw
		}
	}
	if data := gjson.GetBytes(body, "data"); data.IsObject() {
		if data.Get("id").Exists() && data.Get("email").Exists() {
			return data.Raw
		}
	}
	return ""
}

func (i *Interceptor) log() *logging.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return logging.Discard()
}
