package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
)

type MemberHandler struct {
	useCase app.GetMemberByID
}

func NewMemberHandler(useCase app.GetMemberByID) *MemberHandler {
	return &MemberHandler{useCase: useCase}
}

func (h *MemberHandler) GetMemberByID(c echo.Context) error {
	out, err := h.useCase.Execute(c.Request().Context(), app.GetMemberByIDInput{
		TenantID: importContext(c).TenantID,
		ID:       c.Param("id"),
	})
	if err != nil {
		if errors.Is(err, app.ErrMissingTenant) {
			return missingTenant(c)
		}
		if errors.Is(err, app.ErrInvalidMemberID) {
			return fail(c, http.StatusBadRequest, "invalid_member_id", "id must be a valid UUID")
		}
		if errors.Is(err, app.ErrMemberNotFound) {
			return fail(c, http.StatusNotFound, "not_found", "member not found")
		}

		return fail(c, http.StatusInternalServerError, "internal_error", "failed to get member")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
