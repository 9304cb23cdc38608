package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"realestate-token-api/middleware"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

var (
	testUser  = services.Identity{UserID: "0b5f8e0e-4a57-4d8e-8b1e-3f8f0c6b9a01", Email: "user@example.com"}
	testStaff = services.Identity{UserID: "0b5f8e0e-4a57-4d8e-8b1e-3f8f0c6b9a02", Email: "staff@example.com", IsStaff: true}
	anonymous = services.Identity{}
)

// fakeAuth stands in for the bearer-token middleware.
func fakeAuth(identity services.Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if identity.Authenticated() {
			middleware.SetIdentity(c, identity)
		}
		return c.Next()
	}
}

func newTestApp(identity services.Identity, setup func(api fiber.Router)) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", fakeAuth(identity))
	setup(api)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}
