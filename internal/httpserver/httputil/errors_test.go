package httputil

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func performError(t *testing.T, typ ErrorType, msg, param string) (int, map[string]json.RawMessage) {
	t.Helper()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return WriteError(c, typ, msg, param)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Error map[string]json.RawMessage `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.NotNil(t, envelope.Error)
	return resp.StatusCode, envelope.Error
}

func TestWriteErrorStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ    ErrorType
		status int
	}{
		{ErrorTypeNotFound, fiber.StatusNotFound},
		{ErrorTypeBadRequest, fiber.StatusBadRequest},
		{ErrorTypeUnauthorized, fiber.StatusUnauthorized},
		{ErrorTypeInternal, fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, body := performError(t, tc.typ, "boom", "user_id")
		require.Equal(t, tc.status, status)

		var code string
		require.NoError(t, json.Unmarshal(body["code"], &code))
		require.Equal(t, tc.status, mustAtoi(t, code))
	}
}

func TestWriteErrorEnvelopeShape(t *testing.T) {
	t.Parallel()

	_, body := performError(t, ErrorTypeNotFound, "End User Id=u1 does not exist in db", "user_id")

	// Exactly the canonical key set, nothing more.
	require.Len(t, body, 4)
	for _, key := range []string{"message", "type", "param", "code"} {
		require.Contains(t, body, key)
	}

	var message, typ, param, code string
	require.NoError(t, json.Unmarshal(body["message"], &message))
	require.NoError(t, json.Unmarshal(body["type"], &typ))
	require.NoError(t, json.Unmarshal(body["param"], &param))
	require.NoError(t, json.Unmarshal(body["code"], &code))
	require.Equal(t, "End User Id=u1 does not exist in db", message)
	require.Equal(t, "not_found", typ)
	require.Equal(t, "user_id", param)
	require.Equal(t, "404", code)
}

func TestWriteErrorOmittedParamIsNull(t *testing.T) {
	t.Parallel()

	_, body := performError(t, ErrorTypeUnauthorized, "Admin-only endpoint", "")
	require.Equal(t, "null", string(body["param"]))
}

func TestWriteErrorDefaultsMessage(t *testing.T) {
	t.Parallel()

	_, body := performError(t, ErrorTypeInternal, "", "")
	var message string
	require.NoError(t, json.Unmarshal(body["message"], &message))
	require.Equal(t, "Internal Server Error", message)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	var n int
	require.NoError(t, json.Unmarshal([]byte(s), &n))
	return n
}
