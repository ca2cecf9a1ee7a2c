package licensing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensehub/licensehub/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (*serviceFixture, http.Handler) {
	t.Helper()
	f := newServiceFixture(t)
	h := NewHandler(discardLogger(), f.svc)

	r := chi.NewRouter()
	r.Post("/api/verify-license", h.Verify)
	r.Route("/api/companies", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(ContextWithActor(req.Context(), f.admin)))
			})
		})
		h.MountRoutes(r)
	})
	return f, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const registerBody = `{
	"name": "Acme Trading",
	"companyId": "acme",
	"email": "ops@acme.test",
	"phone": "+886-2-1234",
	"address": "1 Harbour Rd",
	"deployKey": "k-1",
	"fingerprints": [
		{"value": "dev-a", "licenseType": "subscription", "expiryDate": "2024-01-31"},
		{"value": "dev-b", "licenseType": "lifetime"}
	]
}`

func TestHandlerRegisterAndUpdate(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/companies", registerBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Company Company `json:"company"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "acme", created.Company.CompanyID)
	require.Len(t, created.Company.Fingerprints, 2)

	path := "/api/companies/" + created.Company.ID.String()
	rec = do(t, router, http.MethodPut, path, `{"fingerprints":[{"value":"dev-a","status":"revoked","revokedReason":"lost"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Company Company `json:"company"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, StatusRevoked, updated.Company.Fingerprints[0].Status)
	assert.Equal(t, created.Company.Fingerprints[1], updated.Company.Fingerprints[1])

	rec = do(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revokedReason":"lost"`)

	rec = do(t, router, http.MethodGet, path+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), actionUpdate)

	rec = do(t, router, http.MethodGet, "/api/companies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updatedByName":"Mei"`)
}

func TestHandlerErrors(t *testing.T) {
	_, router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/companies", registerBody).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		field  string
	}{
		{"malformed json", http.MethodPost, "/api/companies", `{"name":`, http.StatusBadRequest, "body"},
		{"duplicate company", http.MethodPost, "/api/companies", registerBody, http.StatusConflict, "companyId"},
		{"bad id", http.MethodGet, "/api/companies/not-a-uuid", "", http.StatusBadRequest, "id"},
		{"unknown id", http.MethodGet, "/api/companies/5f0c7a4e-2d4b-4a0e-9a59-8d3c1f1b2e11", "", http.StatusNotFound, ""},
		{"empty patch", http.MethodPut, "/api/companies/5f0c7a4e-2d4b-4a0e-9a59-8d3c1f1b2e11", `{}`, http.StatusBadRequest, "body"},
		{"null active", http.MethodPut, "/api/companies/5f0c7a4e-2d4b-4a0e-9a59-8d3c1f1b2e11", `{"active":null}`, http.StatusBadRequest, "active"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var problem httpx.ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tc.field, problem.Field)
		})
	}
}

func TestHandlerVerifyStatusCodes(t *testing.T) {
	f, router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/companies", registerBody).Code)
	f.clock.now = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		body   string
		status int
		reason DenialReason
	}{
		{`{"companyId":"acme","deployKey":"k-1","fingerprint":"dev-b"}`, http.StatusOK, ""},
		{`{"companyId":"acme","deployKey":"k-1","fingerprint":"dev-a"}`, http.StatusForbidden, DenySubscriptionExpired},
		{`{"companyId":"acme","deployKey":"k-1","fingerprint":"dev-x"}`, http.StatusNotFound, DenyDeviceNotRegistered},
		{`{"companyId":"acme","deployKey":"nope","fingerprint":"dev-b"}`, http.StatusForbidden, DenyNotFound},
	}
	for _, tc := range cases {
		rec := do(t, router, http.MethodPost, "/api/verify-license", tc.body)
		require.Equal(t, tc.status, rec.Code, tc.body)
		var v Verdict
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.Equal(t, tc.status == http.StatusOK, v.Authorized)
		assert.Equal(t, tc.reason, v.Reason)
	}

	rec := do(t, router, http.MethodPost, "/api/verify-license", `{"companyId":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
