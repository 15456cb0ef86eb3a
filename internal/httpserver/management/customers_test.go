package management

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/deepaktammali/litellm/internal/app"
	"github.com/deepaktammali/litellm/internal/auth"
	"github.com/deepaktammali/litellm/internal/config"
	customersvc "github.com/deepaktammali/litellm/internal/services/customer"
	spendsvc "github.com/deepaktammali/litellm/internal/services/spend"
	"github.com/deepaktammali/litellm/internal/store"
)

const (
	testMasterKey = "sk-test-master-key"
	testUserToken = "sk-testprefix.testsecret"
)

func newTestEnv(t *testing.T) (*fiber.App, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()

	hash, err := auth.HashKeySecret("testsecret")
	require.NoError(t, err)
	mem.AddAPIKey(store.APIKey{
		Prefix:     "testprefix",
		SecretHash: hash,
		UserID:     "key-owner",
		Role:       string(auth.RoleInternalUser),
	})

	cfg := &config.Config{
		Auth: config.AuthConfig{MasterKey: testMasterKey},
		Reporting: config.ReportingConfig{
			Timezone:        "UTC",
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
	}
	authSvc, err := auth.NewService(cfg.Auth, mem)
	require.NoError(t, err)

	container := &app.Container{
		Config:            cfg,
		Auth:              authSvc,
		Customers:         customersvc.NewService(mem, nil, nil),
		Spend:             spendsvc.NewService(mem, mem, time.UTC),
		ReportingLocation: time.UTC,
	}

	fApp := fiber.New()
	Register(fApp, container)
	return fApp, mem
}

func doJSON(t *testing.T, fApp *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := fApp.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body := decodeBody(t, resp)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "response missing error envelope: %v", body)
	return envelope
}

func TestCreateCustomer(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{
		"user_id": "user-1",
		"alias":   "Alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "user-1", body["user_id"])
	require.Equal(t, "Alice", body["alias"])
}

func TestCreateCustomerDuplicate(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := errorBody(t, resp)
	require.Equal(t, "Customer already exists", envelope["message"])
	require.Equal(t, "bad_request", envelope["type"])
	require.Equal(t, "user_id", envelope["param"])
	require.Equal(t, "400", envelope["code"])
}

func TestCustomerInfoNotFound(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodGet, "/customer/info?end_user_id=ghost", testMasterKey, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope := errorBody(t, resp)
	require.Equal(t, "End User Id=ghost does not exist in db", envelope["message"])
	require.Equal(t, "not_found", envelope["type"])
	require.Equal(t, "end_user_id", envelope["param"])
	require.Equal(t, "404", envelope["code"])
}

func TestUpdateCustomerNotFound(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/update", testMasterKey, fiber.Map{
		"user_id": "ghost",
		"alias":   "x",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope := errorBody(t, resp)
	require.Equal(t, "not_found", envelope["type"])
	require.Equal(t, "user_id", envelope["param"])
}

func TestUpdateCustomerPartial(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{
		"user_id": "user-1",
		"alias":   "Alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, fApp, fiber.MethodPost, "/customer/update", testMasterKey, fiber.Map{
		"user_id": "user-1",
		"blocked": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, true, body["blocked"])
	require.Equal(t, "Alice", body["alias"])
}

func TestDeleteCustomersListsAllMissing(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, fApp, fiber.MethodPost, "/customer/delete", testMasterKey, fiber.Map{
		"user_ids": []string{"user-1", "ghost-1", "ghost-2"},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope := errorBody(t, resp)
	msg, _ := envelope["message"].(string)
	require.Contains(t, msg, "ghost-1")
	require.Contains(t, msg, "ghost-2")
	require.Equal(t, "user_ids", envelope["param"])
}

func TestDeleteCustomersReturnsIDs(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	for _, id := range []string{"user-1", "user-2"} {
		resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{"user_id": id})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/delete", testMasterKey, fiber.Map{
		"user_ids": []string{"user-1", "user-2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.ElementsMatch(t, []any{"user-1", "user-2"}, body["deleted_customers"])
}

func TestErrorEnvelopeKeySet(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	requests := []struct {
		method string
		path   string
		body   any
	}{
		{fiber.MethodGet, "/customer/info?end_user_id=ghost", nil},
		{fiber.MethodPost, "/customer/update", fiber.Map{"user_id": "ghost"}},
		{fiber.MethodPost, "/customer/delete", fiber.Map{"user_ids": []string{"ghost"}}},
		{fiber.MethodPost, "/customer/new", fiber.Map{}},
	}

	for _, req := range requests {
		resp := doJSON(t, fApp, req.method, req.path, testMasterKey, req.body)
		envelope := errorBody(t, resp)

		require.Len(t, envelope, 4, "%s %s", req.method, req.path)
		for _, key := range []string{"message", "type", "param", "code"} {
			require.Contains(t, envelope, key, "%s %s", req.method, req.path)
		}
		require.IsType(t, "", envelope["message"])
		require.IsType(t, "", envelope["type"])
		require.IsType(t, "", envelope["code"])
	}
}

func TestBlockAndUnblockCustomers(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testMasterKey, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, fApp, fiber.MethodPost, "/customer/block", testMasterKey, fiber.Map{
		"user_ids": []string{"user-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var blocked []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&blocked))
	require.Len(t, blocked, 1)
	require.Equal(t, true, blocked[0]["blocked"])

	resp = doJSON(t, fApp, fiber.MethodPost, "/customer/unblock", testMasterKey, fiber.Map{
		"user_ids": []string{"user-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var unblocked []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&unblocked))
	require.Equal(t, false, unblocked[0]["blocked"])
}

func TestEndUserAliasRoutes(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/end_user/new", testMasterKey, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, fApp, fiber.MethodGet, "/end_user/info?end_user_id=user-1", testMasterKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "user-1", body["user_id"])
}

func TestMissingAuthorization(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodGet, "/customer/info?end_user_id=user-1", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	envelope := errorBody(t, resp)
	require.Equal(t, "unauthorized", envelope["type"])
	require.Nil(t, envelope["param"])
}

func TestStoredAPIKeyAuthorizes(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/customer/new", testUserToken, fiber.Map{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestInvalidAPIKeyRejected(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodGet, "/customer/list", "sk-testprefix.wrongsecret", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionEndpointDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	fApp, _ := newTestEnv(t)
	resp := doJSON(t, fApp, fiber.MethodPost, "/auth/session", testMasterKey, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
