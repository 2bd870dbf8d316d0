package integration_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthIntegration_Register_Login_Me(t *testing.T) {
	app := setupTestApp(t)

	w, response := doRequest(app.router, http.MethodPost, "/api/auth/register",
		`{"name":"  Sam Doe ","email":"Sam@Example.com","password":"password123"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var reg authResponse
	mustReadJSON(t, w, &reg)

	if !reg.Success || strings.TrimSpace(reg.Token) == "" {
		t.Fatalf("register expected success and token, got %+v", reg)
	}
	if reg.User.Name != "Sam Doe" || reg.User.Email != "sam@example.com" || reg.User.Role != "mentee" {
		t.Fatalf("unexpected registered user: %+v", reg.User)
	}

	cookie := tokenCookie(t, response)
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("token cookie attributes wrong: %+v", cookie)
	}
	if cookie.Secure {
		t.Fatalf("token cookie should not be Secure outside prod")
	}
	// test tokens live one hour; the cookie keeps its fixed seven days
	if cookie.MaxAge != 7*24*60*60 {
		t.Fatalf("token cookie MaxAge got %d, want %d", cookie.MaxAge, 7*24*60*60)
	}

	// login with the same credentials resolves to the same identity
	w2, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"sam@example.com","password":"password123"}`)
	if w2.Code != http.StatusOK {
		t.Fatalf("login got status %d, want %d, body=%s", w2.Code, http.StatusOK, w2.Body.String())
	}

	var login authResponse
	mustReadJSON(t, w2, &login)

	subject, err := app.tokens.Verify(login.Token)
	if err != nil {
		t.Fatalf("login token should verify: %v", err)
	}
	if subject != reg.User.ID {
		t.Fatalf("login token subject %q, want %q", subject, reg.User.ID)
	}

	w3, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(login.Token))
	if w3.Code != http.StatusOK {
		t.Fatalf("me got status %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	// cookie works as a fallback credential
	w4, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withCookie(cookie))
	if w4.Code != http.StatusOK {
		t.Fatalf("me(cookie) got status %d, want %d, body=%s", w4.Code, http.StatusOK, w4.Body.String())
	}
}

func TestAuthIntegration_MentorJaneScenario(t *testing.T) {
	app := setupTestApp(t)

	reg := mustRegister(t, app, `{"name":"Jane","email":"jane@x.com","password":"secret1","role":"mentor"}`)

	w, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(reg.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("me got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var me struct {
		Success bool `json:"success"`
		User    struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	mustReadJSON(t, w, &me)

	if me.User.Role != "mentor" || me.User.ID != reg.User.ID {
		t.Fatalf("unexpected me payload: %s", w.Body.String())
	}
	if strings.Contains(strings.ToLower(w.Body.String()), "password") {
		t.Fatalf("me must not expose a password field: %s", w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"careerRecommendations":[]`) || !strings.Contains(body, `"mentorMatches":[]`) {
		t.Fatalf("new user history should be empty lists: %s", body)
	}
}

func TestAuthIntegration_DuplicateRegistrationLeavesRecord(t *testing.T) {
	app := setupTestApp(t)

	first := mustRegister(t, app, `{"name":"Ann","email":"ann@x.com","password":"original1","role":"mentor"}`)

	w, _ := doRequest(app.router, http.MethodPost, "/api/auth/register",
		`{"name":"Impostor","email":"ANN@x.com","password":"different1","role":"mentee"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Code != "duplicate_email" || e.Message != "User already exists" {
		t.Fatalf("unexpected duplicate error: %+v", e)
	}

	// original password still works, new one does not
	w2, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"ann@x.com","password":"original1"}`)
	if w2.Code != http.StatusOK {
		t.Fatalf("login(original) got status %d, body=%s", w2.Code, w2.Body.String())
	}
	w3, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"ann@x.com","password":"different1"}`)
	if w3.Code != http.StatusUnauthorized {
		t.Fatalf("login(new password) got status %d, body=%s", w3.Code, w3.Body.String())
	}

	w4, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(first.Token))
	if !strings.Contains(w4.Body.String(), `"name":"Ann"`) || !strings.Contains(w4.Body.String(), `"role":"mentor"`) {
		t.Fatalf("existing record changed: %s", w4.Body.String())
	}
}

func TestAuthIntegration_RegisterValidation(t *testing.T) {
	app := setupTestApp(t)

	cases := map[string]struct {
		body  string
		field string
	}{
		"unknown role":   {`{"name":"A","email":"a@x.com","password":"secret1","role":"admin"}`, "role"},
		"short password": {`{"name":"A","email":"a@x.com","password":"123"}`, "password"},
		"bad email":      {`{"name":"A","email":"nope","password":"secret1"}`, "email"},
		"blank name":     {`{"name":"   ","email":"a@x.com","password":"secret1"}`, "name"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := doRequest(app.router, http.MethodPost, "/api/auth/register", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}

			var e apiErrorResponse
			mustReadJSON(t, w, &e)
			if e.Code != "invalid_request" {
				t.Fatalf("expected invalid_request, got %q", e.Code)
			}

			found := false
			for _, fe := range e.Errors {
				if fe.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected a field error for %q, got %s", tc.field, w.Body.String())
			}
		})
	}

	// nothing was created along the way
	w, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("rejected registration must not create a user, login got %d", w.Code)
	}
}

func TestAuthIntegration_LoginFailuresAreIndistinguishable(t *testing.T) {
	app := setupTestApp(t)
	mustRegister(t, app, `{"name":"Kim","email":"kim@x.com","password":"rightpass"}`)

	unknown, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"nobody@x.com","password":"rightpass"}`)
	wrong, _ := doRequest(app.router, http.MethodPost, "/api/auth/login", `{"email":"kim@x.com","password":"wrongpass"}`)

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("login failures got %d and %d, want 401", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("login failure bodies differ:\n%s\n%s", unknown.Body.String(), wrong.Body.String())
	}
	if !strings.Contains(unknown.Body.String(), `"message":"Invalid credentials"`) {
		t.Fatalf("unexpected login failure body: %s", unknown.Body.String())
	}
}

func TestAuthIntegration_ProtectedRoutesRejectMissingCredential(t *testing.T) {
	app := setupTestApp(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPut, "/api/auth/profile"},
		{http.MethodPost, "/api/career/recommend"},
		{http.MethodGet, "/api/career/recommendations"},
		{http.MethodPost, "/api/mentor/match"},
		{http.MethodGet, "/api/mentor/list"},
		{http.MethodGet, "/api/mentor/matches"},
		{http.MethodGet, "/api/mentor/mentees"},
		{http.MethodGet, "/api/mentor/requests"},
	}

	for _, rt := range routes {
		w, _ := doRequest(app.router, rt.method, rt.path, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s got status %d, want %d", rt.method, rt.path, w.Code, http.StatusUnauthorized)
		}

		var e apiErrorResponse
		mustReadJSON(t, w, &e)
		if e.Code != "missing_credential" {
			t.Fatalf("%s %s got code %q", rt.method, rt.path, e.Code)
		}
	}

	if app.ml.calls.Load() != 0 {
		t.Fatalf("unauthenticated requests must never reach the ML service")
	}
}

func TestAuthIntegration_ForgedAndExpiredTokens(t *testing.T) {
	app := setupTestApp(t)
	reg := mustRegister(t, app, `{"name":"Lee","email":"lee@x.com","password":"secret1"}`)

	sign := func(secret string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   reg.User.ID,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	tokens := map[string]string{
		"wrong signature": sign("some-other-secret", time.Now().Add(time.Hour)),
		"expired":         sign(testSecret, time.Now().Add(-time.Minute)),
		"garbage":         "not.a.jwt",
	}

	for name, token := range tokens {
		w, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(token))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: got status %d, want %d", name, w.Code, http.StatusUnauthorized)
		}

		var e apiErrorResponse
		mustReadJSON(t, w, &e)
		if e.Code != "invalid_credential" {
			t.Fatalf("%s: got code %q", name, e.Code)
		}
	}
}

func TestAuthIntegration_DeletedUserBehindValidToken(t *testing.T) {
	app := setupTestApp(t)
	reg := mustRegister(t, app, `{"name":"Gone","email":"gone@x.com","password":"secret1"}`)

	app.users.Delete(reg.User.ID)

	w, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(reg.Token))
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNotFound, w.Body.String())
	}

	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Code != "identity_not_found" {
		t.Fatalf("got code %q", e.Code)
	}
}

func TestAuthIntegration_UpdateProfile(t *testing.T) {
	app := setupTestApp(t)
	reg := mustRegister(t, app, `{"name":"Pat","email":"pat@x.com","password":"secret1"}`)

	bad, _ := doRequest(app.router, http.MethodPut, "/api/auth/profile",
		`{"profile":{"careerBreakYears":-2}}`, withBearer(reg.Token))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("negative career break got status %d, body=%s", bad.Code, bad.Body.String())
	}

	w, _ := doRequest(app.router, http.MethodPut, "/api/auth/profile",
		`{"profile":{"education":" BSc ","skills":["go"," sql ",""],"careerBreakYears":2}}`, withBearer(reg.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("update profile got status %d, body=%s", w.Code, w.Body.String())
	}

	// profile is replaced wholesale
	w2, _ := doRequest(app.router, http.MethodPut, "/api/auth/profile",
		`{"profile":{"interests":["data"]}}`, withBearer(reg.Token))
	if w2.Code != http.StatusOK {
		t.Fatalf("second update got status %d, body=%s", w2.Code, w2.Body.String())
	}

	var me struct {
		User struct {
			Profile struct {
				Education string   `json:"education"`
				Skills    []string `json:"skills"`
				Interests []string `json:"interests"`
			} `json:"profile"`
		} `json:"user"`
	}
	w3, _ := doRequest(app.router, http.MethodGet, "/api/auth/me", "", withBearer(reg.Token))
	mustReadJSON(t, w3, &me)

	if me.User.Profile.Education != "" || len(me.User.Profile.Skills) != 0 {
		t.Fatalf("old profile fields survived replacement: %s", w3.Body.String())
	}
	if len(me.User.Profile.Interests) != 1 || me.User.Profile.Interests[0] != "data" {
		t.Fatalf("new profile not stored: %s", w3.Body.String())
	}
}

func TestAuthIntegration_LogoutClearsCookie(t *testing.T) {
	app := setupTestApp(t)

	w, response := doRequest(app.router, http.MethodPost, "/api/auth/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout got status %d, body=%s", w.Code, w.Body.String())
	}

	c := tokenCookie(t, response)
	if c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("expected logout to clear token cookie, got %+v", c)
	}
}

func TestAuthIntegration_HealthAndHeaders(t *testing.T) {
	app := setupTestApp(t)

	w, _ := doRequest(app.router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"OK"`) {
		t.Fatalf("health got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}

	w2, _ := doRequest(app.router, http.MethodGet, "/readyz", "")
	if w2.Code != http.StatusOK {
		t.Fatalf("readyz got %d", w2.Code)
	}
}
