package meeting

import (
	"context"
	"net/http"
	"time"

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
	read := api.Group("", auth.RequireRole(auth.RoleCommittee, auth.RoleTreasurer,
		auth.RoleTrustee, auth.RoleAdmin))
	read.GET("/meetings", h.List)
	read.GET("/meetings/:id", h.Get)
	read.GET("/meetings/:id/attendance", h.Attendance)

	write := api.Group("", auth.RequireRole(auth.RoleCommittee, auth.RoleAdmin))
	write.POST("/meetings", h.Create)
	write.POST("/meetings/:id/links", h.LinkClaim)
	write.DELETE("/meetings/:id/links/:linkId", h.UnlinkClaim)
	write.POST("/meetings/links/:linkId/decision", h.SetDecision)
	write.POST("/meetings/:id/attendance", h.RecordAttendance)
	write.POST("/meetings/:id/quorum", h.ConfirmQuorum)
	write.POST("/meetings/:id/ratify", h.Ratify)
	write.POST("/meetings/:id/lock", h.Lock)
}

func actorOr401(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return actor, nil
}

func httpError(err error) error {
	return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

type createRequest struct {
	Date  time.Time `json:"date"`
	Type  string    `json:"type"`
	Notes string    `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.CreateMeeting(c.Request().Context(), actor, req.Date, req.Type, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	meetings, total, err := h.svc.List(c.Request().Context(),
		c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meetings, total, pg.Limit, pg.Offset))
}

type linkRequest struct {
	ClaimID uuid.UUID `json:"claim_id"`
}

func (h *Handler) LinkClaim(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	link, err := h.svc.LinkClaim(c.Request().Context(), actor, id, req.ClaimID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *Handler) UnlinkClaim(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := pathID(c, "linkId")
	if err != nil {
		return err
	}
	if err := h.svc.UnlinkClaim(c.Request().Context(), actor, id, linkID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h *Handler) SetDecision(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	linkID, err := pathID(c, "linkId")
	if err != nil {
		return err
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	link, err := h.svc.SetDecision(c.Request().Context(), actor, linkID, req.Decision, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, link)
}

type attendanceRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	Name    string    `json:"name"`
	Present bool      `json:"present"`
}

func (h *Handler) RecordAttendance(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req attendanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.RecordAttendance(c.Request().Context(), actor, id,
		req.ActorID, req.Name, req.Present)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Attendance(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.svc.Attendance(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ConfirmQuorum(c echo.Context) error {
	return h.lifecycle(c, h.svc.ConfirmQuorum)
}

func (h *Handler) Ratify(c echo.Context) error {
	return h.lifecycle(c, h.svc.Ratify)
}

func (h *Handler) Lock(c echo.Context) error {
	return h.lifecycle(c, h.svc.Lock)
}

// lifecycle handles the quorum/ratify/lock endpoints, which share the same
// shape: actor + meeting id in, updated meeting out.
func (h *Handler) lifecycle(c echo.Context,
	op func(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Meeting, error)) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	m, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}
