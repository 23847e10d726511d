package member

import (
	"context"
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/membership-types", h.ListTypes)
	api.POST("/membership-types", h.CreateType,
		auth.RequireRole(auth.RoleTrustee, auth.RoleAdmin))

	read := api.Group("", auth.RequireRole(auth.RoleCommittee, auth.RoleTreasurer, auth.RoleTrustee, auth.RoleAdmin))
	read.GET("/members", h.List)
	read.GET("/members/:id", h.Get)

	api.POST("/members", h.Register)
	decide := api.Group("", auth.RequireRole(auth.RoleCommittee, auth.RoleAdmin))
	decide.POST("/members/:id/approve", h.Approve)
	decide.POST("/members/:id/reject", h.Reject)
	decide.POST("/members/:id/revoke", h.Revoke)

	api.GET("/members/:id/dependants", h.ListDependants)
	api.POST("/members/:id/dependants", h.AddDependant)
	api.DELETE("/members/:id/dependants/:dependantId", h.RemoveDependant)
}

func actorOr401(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return actor, nil
}

func (h *Handler) Register(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), actor, &m); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	members, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(members, total, pg.Limit, pg.Offset))
}

func (h *Handler) Approve(c echo.Context) error { return h.decision(c, h.svc.Approve) }
func (h *Handler) Reject(c echo.Context) error  { return h.decision(c, h.svc.Reject) }
func (h *Handler) Revoke(c echo.Context) error  { return h.decision(c, h.svc.Revoke) }

func (h *Handler) decision(c echo.Context,
	op func(ctx context.Context, actor auth.Actor, memberID uuid.UUID) (*Member, error)) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateType(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var t MembershipType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateType(c.Request().Context(), actor, &t); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTypes(c echo.Context) error {
	types, err := h.svc.ListTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, types)
}

func (h *Handler) AddDependant(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Dependant
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.MemberID = memberID
	if err := h.svc.AddDependant(c.Request().Context(), actor, &d); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDependants(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deps, err := h.svc.ListDependants(c.Request().Context(), memberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, deps)
}

func (h *Handler) RemoveDependant(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	dependantID, err := uuid.Parse(c.Param("dependantId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid dependant id")
	}
	if err := h.svc.RemoveDependant(c.Request().Context(), actor, memberID, dependantID); err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
