package echoapi_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/tests"
)

func TestHome(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	rec := do(api, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to PinkConnect API!", rec.Body.String())
}

func Test_authApi_signUp(t *testing.T) {
	signUpBody := func(email, pwd, role string) []byte {
		return marshallObj(t, map[string]interface{}{
			"email":    email,
			"password": pwd,
			"data":     map[string]string{"full_name": "Mama Amani", "role": role},
		})
	}
	decode := func(t *testing.T, body []byte) identity.SignUpResult {
		var res identity.SignUpResult
		require.NoError(t, json.Unmarshal(body, &res))
		return res
	}

	t.Run("with email confirmation", func(t *testing.T) {
		api := testutil.NewAPI(t, nil)

		rec := do(api, http.MethodPost, "/auth/v1/signup", "", signUpBody(" Mama.Amani@Pink.cd ", testPwd, "teacher"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := decode(t, rec.Body.Bytes())
		assert.False(t, res.SessionPresent())
		assert.Equal(t, testEmail, res.User.Email)
		assert.Nil(t, res.User.ConfirmedAt)
		assert.Equal(t, map[string]string{"full_name": "Mama Amani", "role": "teacher"}, res.User.Metadata)

		_, ok := api.Mail.LastMessage(testEmail)
		assert.True(t, ok, "confirmation mail not sent")
	})

	t.Run("without email confirmation", func(t *testing.T) {
		conf := testutil.Config()
		conf.Auth.ConfirmEmail = false
		api := testutil.NewAPI(t, conf)

		rec := do(api, http.MethodPost, "/auth/v1/signup", "", signUpBody(testEmail, testPwd, ""))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := decode(t, rec.Body.Bytes())
		require.True(t, res.SessionPresent())
		assert.Equal(t, "bearer", res.Session.TokenType)
		assert.NotEmpty(t, res.Session.AccessToken)
		assert.NotEmpty(t, res.Session.RefreshToken)
		assert.Equal(t, res.User.ID, res.Session.User.ID)
		assert.NotNil(t, res.User.ConfirmedAt)

		_, ok := api.Mail.LastMessage(testEmail)
		assert.False(t, ok)
	})

	api := testutil.NewAPI(t, nil)
	testutil.CreateUser(t, api.Users, "taken@pink.cd", "", "", true)

	runHTTPTests(t, api, []httpTest{
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("mama@", testPwd, ""),
			wantCode: http.StatusBadRequest,
			wantData: providerErr(t, identity.ErrInvalidEmail),
		},
		{
			name:     "existing email",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("Taken@pink.cd", testPwd, ""),
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.ErrUserExists),
		},
		{
			name:     "short password",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("new@pink.cd", "a1b2", ""),
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.WeakPassword("password must contain at least 6 characters")),
		},
		{
			name:     "numeric password",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("new@pink.cd", "12345678", ""),
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.WeakPassword("password cannot be entirely numeric")),
		},
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("new@pink.cd", "", ""),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "password: this field is required", "code": "validation_failed", "fields": {"password": "this field is required"}}`),
		},
		{
			name:     "unknown role",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     signUpBody("new@pink.cd", testPwd, "principal"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "role: role must be one of parent or teacher", "code": "validation_failed", "fields": {"role": "role must be one of parent or teacher"}}`),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/auth/v1/signup",
			body:     []byte(`{"email": `),
			wantCode: http.StatusBadRequest,
		},
	})
}

func Test_authApi_verify(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	body := marshallObj(t, map[string]interface{}{"email": testEmail, "password": testPwd})
	rec := do(api, http.MethodPost, "/auth/v1/signup", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// cannot sign in before confirmation
	rec = do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: providerErr(t, identity.ErrEmailNotConfirmed)}, rec)

	uid, token := uidAndToken(t, api, testEmail)
	runHTTPTests(t, api, []httpTest{
		{
			name:     "wrong type",
			method:   http.MethodPost,
			path:     "/auth/v1/verify",
			body:     marshallObj(t, map[string]string{"type": "magiclink", "uid": uid, "token": token}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad token",
			method:   http.MethodPost,
			path:     "/auth/v1/verify",
			body:     marshallObj(t, map[string]string{"type": "signup", "uid": uid, "token": "nope"}),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
		{
			name:     "bad uid",
			method:   http.MethodPost,
			path:     "/auth/v1/verify",
			body:     marshallObj(t, map[string]string{"type": "signup", "uid": "!!", "token": token}),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
	})

	rec = do(api, http.MethodPost, "/auth/v1/verify", "", marshallObj(t, map[string]string{"type": "signup", "uid": uid, "token": token}))
	sess := decodeSession(t, rec)
	assert.NotNil(t, sess.User.ConfirmedAt)

	signIn(t, api, testEmail, testPwd)
}

func Test_authApi_token_password(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	usr := testutil.CreateUser(t, api.Users, testEmail, "Mama Amani", "", true)
	testutil.CreateUser(t, api.Users, "pending@pink.cd", "", "", false)

	path := "/auth/v1/token?grant_type=password"
	creds := func(email, pwd string) []byte {
		return marshallObj(t, map[string]string{"email": email, "password": pwd})
	}

	runHTTPTests(t, api, []httpTest{
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     path,
			body:     creds(testEmail, "wrong-pass1"),
			wantCode: http.StatusBadRequest,
			wantData: providerErr(t, identity.ErrInvalidCredentials),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     path,
			body:     creds("ghost@pink.cd", testPwd),
			wantCode: http.StatusBadRequest,
			wantData: providerErr(t, identity.ErrInvalidCredentials),
		},
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     path,
			body:     creds("other@pink.cd", ""),
			wantCode: http.StatusBadRequest,
			wantData: providerErr(t, identity.ErrInvalidCredentials),
		},
		{
			name:     "unconfirmed email",
			method:   http.MethodPost,
			path:     path,
			body:     creds("pending@pink.cd", testutil.Password),
			wantCode: http.StatusBadRequest,
			wantData: providerErr(t, identity.ErrEmailNotConfirmed),
		},
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     path,
			body:     creds("mama.amani", testPwd),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "Unable to validate email address: invalid format", "code": "validation_failed"}`),
		},
		{
			name:     "unsupported grant",
			method:   http.MethodPost,
			path:     "/auth/v1/token?grant_type=magic",
			body:     creds(testEmail, testPwd),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "Unsupported grant type", "code": "validation_failed"}`),
		},
	})

	sess := signIn(t, api, " Mama.Amani@pink.cd", testPwd)
	assert.Equal(t, usr.ID, sess.User.ID)
	assert.Equal(t, "Mama Amani", sess.User.Metadata["full_name"])
	assert.NotNil(t, sess.User.LastSignIn)
	assert.Equal(t, int64(testutil.Config().Server.JWTExpirationDelta.Seconds()), sess.ExpiresIn)
	assert.False(t, sess.ExpiresAt.IsZero())
}

func Test_authApi_rateLimit(t *testing.T) {
	conf := testutil.Config()
	conf.Auth.SignInRateLimit = 2
	api := testutil.NewAPI(t, conf)
	testutil.CreateUser(t, api.Users, testEmail, "", "", true)

	body := marshallObj(t, map[string]string{"email": testEmail, "password": "wrong-pass1"})
	for i := 0; i < 2; i++ {
		rec := do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	checkCodeAndData(t, httpTest{wantCode: http.StatusTooManyRequests, wantData: providerErr(t, identity.ErrRateLimited)}, rec)

	// counted per email
	rec = do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", marshallObj(t, map[string]string{"email": "other@pink.cd", "password": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// recover has its own counter
	recoverBody := marshallObj(t, map[string]string{"email": testEmail})
	for i := 0; i < 2; i++ {
		rec = do(api, http.MethodPost, "/auth/v1/recover", "", recoverBody)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec = do(api, http.MethodPost, "/auth/v1/recover", "", recoverBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(api, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := rec.Body.String()
	assert.Contains(t, metrics, `pinkconnect_auth_attempts_total{op="password",outcome="failure"} 3`)
	assert.Contains(t, metrics, `pinkconnect_auth_attempts_total{op="password",outcome="rate_limited"} 1`)
	assert.Contains(t, metrics, `pinkconnect_auth_attempts_total{op="recover",outcome="rate_limited"} 1`)
	assert.Contains(t, metrics, `pinkconnect_http_request_duration_seconds_count{code="429",method="POST",route="/auth/v1/token"} 1`)
}

func Test_authApi_refreshAndLogout(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	testutil.CreateUser(t, api.Users, testEmail, "", "", true)
	sess := signIn(t, api, testEmail, testPwd)

	refresh := func(token string) []byte {
		return marshallObj(t, map[string]string{"refresh_token": token})
	}

	runHTTPTests(t, api, []httpTest{
		{
			name:     "garbage refresh token",
			method:   http.MethodPost,
			path:     "/auth/v1/token?grant_type=refresh_token",
			body:     refresh("garbage"),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
		{
			name:     "access token used as refresh token",
			method:   http.MethodPost,
			path:     "/auth/v1/token?grant_type=refresh_token",
			body:     refresh(sess.AccessToken),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
		{
			name:     "refresh token used as access token",
			method:   http.MethodGet,
			path:     "/auth/v1/user",
			token:    sess.RefreshToken,
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
	})

	rec := do(api, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", refresh(sess.RefreshToken))
	refreshed := decodeSession(t, rec)
	assert.Equal(t, sess.User.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.AccessToken)

	rec = do(api, http.MethodGet, "/auth/v1/user", refreshed.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a refresh token is exchanged once
	rec = do(api, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", refresh(sess.RefreshToken))
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: providerErr(t, identity.ErrInvalidToken)}, rec)

	// logging out revokes every token of the session
	rec = do(api, http.MethodPost, "/auth/v1/logout", sess.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	runHTTPTests(t, api, []httpTest{
		{
			name:     "revoked access token",
			method:   http.MethodGet,
			path:     "/auth/v1/user",
			token:    refreshed.AccessToken,
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrSessionNotFound),
		},
		{
			name:     "revoked refresh token",
			method:   http.MethodPost,
			path:     "/auth/v1/token?grant_type=refresh_token",
			body:     refresh(refreshed.RefreshToken),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrSessionNotFound),
		},
		{
			name:     "logout without token",
			method:   http.MethodPost,
			path:     "/auth/v1/logout",
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrSessionNotFound),
		},
	})

	// other sessions are left alone
	other := signIn(t, api, testEmail, testPwd)
	rec = do(api, http.MethodGet, "/auth/v1/user", other.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_refreshOnce(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	testutil.CreateUser(t, api.Users, testEmail, "", "", true)
	sess := signIn(t, api, testEmail, testPwd)
	body := marshallObj(t, map[string]string{"refresh_token": sess.RefreshToken})

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- do(api, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body).Code
		}()
	}
	wg.Wait()
	close(codes)

	got := map[int]int{}
	for code := range codes {
		got[code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusUnauthorized: n - 1}, got)
}

func Test_authApi_user(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	usr := testutil.CreateUser(t, api.Users, testEmail, "Mama Amani", "", true)
	sess := signIn(t, api, testEmail, testPwd)

	rec := do(api, http.MethodGet, "/auth/v1/user", sess.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var got identity.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, testEmail, got.Email)

	pwdBody := func(pwd string) []byte { return marshallObj(t, map[string]string{"password": pwd}) }
	runHTTPTests(t, api, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/auth/v1/user",
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrSessionNotFound),
		},
		{
			name:     "weak password",
			method:   http.MethodPut,
			path:     "/auth/v1/user",
			body:     pwdBody("mama amani"),
			token:    sess.AccessToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.WeakPassword("password must not contain whitespace")),
		},
		{
			name:     "similar to email",
			method:   http.MethodPut,
			path:     "/auth/v1/user",
			body:     pwdBody("mama.amani"),
			token:    sess.AccessToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.WeakPassword("password cannot be similar to user attributes")),
		},
	})

	newPwd := "N3w!Secr3t"
	rec = do(api, http.MethodPut, "/auth/v1/user", sess.AccessToken, pwdBody(newPwd))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	signIn(t, api, testEmail, newPwd)
	rec = do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", marshallObj(t, map[string]string{"email": testEmail, "password": testPwd}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_authApi_recoverAndReset(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	testutil.CreateUser(t, api.Users, testEmail, "Mama Amani", "", true)

	// unknown accounts get the same answer, and no mail
	rec := do(api, http.MethodPost, "/auth/v1/recover", "", marshallObj(t, map[string]string{"email": "ghost@pink.cd"}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{}`)}, rec)
	assert.Empty(t, api.Mail.SentMessages())

	rec = do(api, http.MethodPost, "/auth/v1/recover", "", marshallObj(t, map[string]string{"email": "ghost"}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: providerErr(t, identity.ErrInvalidEmail)}, rec)

	rec = do(api, http.MethodPost, "/auth/v1/recover", "", marshallObj(t, map[string]string{
		"email":       testEmail,
		"redirect_to": "pinkconnect://auth/reset",
	}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{}`)}, rec)
	msg, ok := api.Mail.LastMessage(testEmail)
	require.True(t, ok)
	assert.True(t, strings.Contains(msg.TextContent, "pinkconnect://auth/reset?uid="), msg.TextContent)

	uid, token := uidAndToken(t, api, testEmail)
	newPwd := "N3w!Secr3t"
	resetBody := func(uid, token, pwd string) []byte {
		return marshallObj(t, map[string]string{"uid": uid, "token": token, "password": pwd})
	}

	runHTTPTests(t, api, []httpTest{
		{
			name:     "bad token",
			method:   http.MethodPost,
			path:     "/auth/v1/reset",
			body:     resetBody(uid, "bad-token", newPwd),
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrInvalidToken),
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/auth/v1/reset",
			body:     resetBody(uid, token, "123456"),
			wantCode: http.StatusUnprocessableEntity,
			wantData: providerErr(t, identity.WeakPassword("password cannot be entirely numeric")),
		},
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/auth/v1/reset",
			body:     resetBody(uid, "", newPwd),
			wantCode: http.StatusBadRequest,
		},
	})

	rec = do(api, http.MethodPost, "/auth/v1/reset", "", resetBody(uid, token, newPwd))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signIn(t, api, testEmail, newPwd)

	// the link is single use: the password hash changed
	rec = do(api, http.MethodPost, "/auth/v1/reset", "", resetBody(uid, token, "An0ther!Pwd"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_authApi_recoverRedirect(t *testing.T) {
	conf := testutil.Config()
	conf.Auth.RedirectAllowList = []string{"https://portal.pink.cd/reset"}

	tests := []struct {
		name       string
		redirectTo string
		wantLink   string
	}{
		{name: "default", wantLink: "pinkconnect://auth/reset-password?uid="},
		{name: "frontend url", redirectTo: "pinkconnect://auth/reset", wantLink: "pinkconnect://auth/reset?uid="},
		{name: "allow-listed url", redirectTo: "https://portal.pink.cd/reset/password", wantLink: "https://portal.pink.cd/reset/password?uid="},
		{name: "foreign host", redirectTo: "https://evil.example/steal"},
		{name: "allow-listed host as prefix", redirectTo: "https://portal.pink.cd/reset.evil.example/x"},
		{name: "own query", redirectTo: "pinkconnect://auth/reset?next=https://evil.example"},
		{name: "user info", redirectTo: "https://portal.pink.cd/reset@evil.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testutil.NewAPI(t, conf)
			testutil.CreateUser(t, api.Users, testEmail, "Mama Amani", "", true)

			body := map[string]string{"email": testEmail}
			if tt.redirectTo != "" {
				body["redirect_to"] = tt.redirectTo
			}
			rec := do(api, http.MethodPost, "/auth/v1/recover", "", marshallObj(t, body))

			if tt.wantLink == "" {
				checkCodeAndData(t, httpTest{
					wantCode: http.StatusBadRequest,
					wantData: providerErr(t, identity.NewError(http.StatusBadRequest, identity.CodeValidationFailed, "Unable to validate redirect_to: url not allowed")),
				}, rec)
				assert.Empty(t, api.Mail.SentMessages())
				return
			}
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{}`)}, rec)
			msg, ok := api.Mail.LastMessage(testEmail)
			require.True(t, ok)
			assert.Contains(t, msg.TextContent, tt.wantLink)
			assert.NotContains(t, msg.TextContent, "evil.example")
		})
	}
}

func Test_profileApi(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	usr := testutil.CreateUser(t, api.Users, testEmail, "", "", true)
	other := testutil.CreateUser(t, api.Users, "other@pink.cd", "", "", true)
	sess := signIn(t, api, testEmail, testPwd)

	newProfile := func(id, role string) []byte {
		return marshallObj(t, profile.NewProfile{ID: id, Email: testEmail, Role: role})
	}

	runHTTPTests(t, api, []httpTest{
		{
			name:     "unauthenticated",
			method:   http.MethodGet,
			path:     "/rest/v1/profiles/" + usr.ID,
			wantCode: http.StatusUnauthorized,
			wantData: providerErr(t, identity.ErrSessionNotFound),
		},
		{
			name:     "missing profile",
			method:   http.MethodGet,
			path:     "/rest/v1/profiles/" + usr.ID,
			token:    sess.AccessToken,
			wantCode: http.StatusNotFound,
			wantData: providerErr(t, identity.ErrNotFound),
		},
		{
			name:     "profile of someone else",
			method:   http.MethodGet,
			path:     "/rest/v1/profiles/" + other.ID,
			token:    sess.AccessToken,
			wantCode: http.StatusForbidden,
			wantData: providerErr(t, identity.ErrForbidden),
		},
		{
			name:     "create for someone else",
			method:   http.MethodPost,
			path:     "/rest/v1/profiles",
			body:     newProfile(other.ID, ""),
			token:    sess.AccessToken,
			wantCode: http.StatusForbidden,
			wantData: providerErr(t, identity.ErrForbidden),
		},
		{
			name:     "invalid role",
			method:   http.MethodPost,
			path:     "/rest/v1/profiles",
			body:     newProfile(usr.ID, "principal"),
			token:    sess.AccessToken,
			wantCode: http.StatusBadRequest,
		},
	})

	rec := do(api, http.MethodPost, "/rest/v1/profiles", sess.AccessToken, newProfile(usr.ID, "teacher"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, usr.ID, created.ID)
	assert.Equal(t, profile.RoleTeacher, created.Role)

	rec = do(api, http.MethodPost, "/rest/v1/profiles", sess.AccessToken, newProfile(usr.ID, "parent"))
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: providerErr(t, identity.ErrDuplicateKey)}, rec)

	rec = do(api, http.MethodGet, "/rest/v1/profiles/"+usr.ID, sess.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var got profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, profile.RoleTeacher, got.Role)
}

func TestNotFound(t *testing.T) {
	api := testutil.NewAPI(t, nil)
	rec := do(api, http.MethodGet, "/auth/v1/nowhere", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: []byte(`{"error": "Not Found", "code": "not_found"}`)}, rec)
}
