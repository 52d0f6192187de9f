package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/tests"
)

const (
	testEmail = "mama.amani@pink.cd"
	testPwd   = testutil.Password
)

var uidTokenRe = regexp.MustCompile(`uid=([\w-]+)&(?:amp;)?token=([\w-]+)`)

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func do(api *testutil.API, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	api.Server.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, api *testutil.API, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(api, tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func providerErr(t *testing.T, err *identity.Error) []byte {
	return marshallObj(t, httpErr{Error: err.Message, Code: string(err.Code)})
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) identity.Session {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess identity.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func signIn(t *testing.T, api *testutil.API, email, pwd string) identity.Session {
	t.Helper()
	body := marshallObj(t, map[string]string{"email": email, "password": pwd})
	return decodeSession(t, do(api, http.MethodPost, "/auth/v1/token?grant_type=password", "", body))
}

// uidAndToken extracts the link parameters of the last mail sent to addr.
func uidAndToken(t *testing.T, api *testutil.API, addr string) (string, string) {
	t.Helper()
	msg, ok := api.Mail.LastMessage(addr)
	require.True(t, ok, "no mail sent to %s", addr)
	m := uidTokenRe.FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 3, "no link in %q", msg.TextContent)
	return m[1], m[2]
}
