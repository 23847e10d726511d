package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleCommittee, auth.RoleTrustee, auth.RoleTreasurer, auth.RoleAdmin))
	g.GET("/audit", h.ListGlobal)
	g.GET("/claims/:id/audit", h.ListByClaim)
	g.GET("/meetings/:id/audit", h.ListByMeeting)
}

func (h *Handler) ListGlobal(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.Trail(c.Request().Context(), descending(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.TrailForClaim(c.Request().Context(), id, descending(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByMeeting(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.TrailForMeeting(c.Request().Context(), id, descending(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func descending(c echo.Context) bool {
	return c.QueryParam("order") == "desc"
}
