package echo

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
)

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTenantCode = "X-Tenant-Code"
	HeaderActorID    = "X-Actor-ID"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, apiResponse{Error: &errorBody{Code: code, Message: message}})
}

func failWith(c echo.Context, status int, code, message string, data, details any) error {
	return c.JSON(status, apiResponse{Data: data, Error: &errorBody{Code: code, Message: message, Details: details}})
}

// importContext reads the tenant scope the gateway forwards in headers.
func importContext(c echo.Context) app.ImportContext {
	h := c.Request().Header
	return app.ImportContext{
		TenantID:   strings.TrimSpace(h.Get(HeaderTenantID)),
		TenantCode: strings.TrimSpace(h.Get(HeaderTenantCode)),
		ActorID:    strings.TrimSpace(h.Get(HeaderActorID)),
	}
}

func missingTenant(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "missing_tenant", HeaderTenantID+" header is required")
}
