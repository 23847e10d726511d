package settings

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sgss/medfund/internal/platform/apperror"
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
	api.GET("/settings", h.GetActive)
	api.GET("/settings/versions", h.ListVersions,
		auth.RequireRole(auth.RoleCommittee, auth.RoleTrustee, auth.RoleAdmin))
	api.GET("/settings/versions/:version", h.GetVersion,
		auth.RequireRole(auth.RoleCommittee, auth.RoleTrustee, auth.RoleAdmin))
	api.POST("/settings", h.Publish,
		auth.RequireRole(auth.RoleTrustee, auth.RoleAdmin))
}

func (h *Handler) GetActive(c echo.Context) error {
	snap, err := h.svc.GetActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active settings")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetVersion(c echo.Context) error {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version")
	}
	snap, err := h.svc.GetVersion(c.Request().Context(), version)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ListVersions(c echo.Context) error {
	pg := pagination.FromContext(c)
	snaps, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(snaps, total, pg.Limit, pg.Offset))
}

func (h *Handler) Publish(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var snap Snapshot
	if err := c.Bind(&snap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	published, err := h.svc.Publish(c.Request().Context(), actor, &snap)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, published)
}
