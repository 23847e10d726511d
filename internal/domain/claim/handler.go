package claim

import (
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
	api.POST("/claims", h.SubmitClaim)
	api.POST("/claims/draft", h.CreateDraft)
	api.GET("/claims/:id", h.Get)
	api.POST("/claims/:id/submit", h.Submit)
	api.POST("/claims/:id/transition", h.Transition)
	api.POST("/claims/:id/override", h.SetOverride,
		auth.RequireRole(auth.RoleCommittee, auth.RoleAdmin))
	api.GET("/claims", h.List,
		auth.RequireRole(auth.RoleCommittee, auth.RoleTreasurer, auth.RoleTrustee, auth.RoleAdmin))
	api.GET("/members/:id/claims", h.ListByMember)
	api.GET("/members/:id/balance", h.UsedBalance,
		auth.RequireRole(auth.RoleCommittee, auth.RoleTreasurer, auth.RoleAdmin))

	api.POST("/claims/:id/appeals", h.OpenAppeal)
	api.GET("/claims/:id/appeals", h.ListAppeals)
	api.GET("/appeals", h.ListPendingAppeals,
		auth.RequireRole(auth.RoleTrustee, auth.RoleAdmin))
	api.POST("/appeals/:id/resolve", h.ResolveAppeal,
		auth.RequireRole(auth.RoleTrustee, auth.RoleAdmin))
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

func (h *Handler) SubmitClaim(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.SubmitClaim(c.Request().Context(), actor, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) CreateDraft(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.CreateDraft(c.Request().Context(), actor, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Submit(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Submit(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type transitionRequest struct {
	Target     string `json:"target"`
	Note       string `json:"note,omitempty"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

func (h *Handler) Transition(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.Transition(c.Request().Context(), actor, id, req.Target,
		TransitionOpts{Note: req.Note, PaymentRef: req.PaymentRef})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type overrideRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note,omitempty"`
}

func (h *Handler) SetOverride(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.SetOverride(c.Request().Context(), actor, id, req.Amount, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	claims, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByMember(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	claims, total, err := h.svc.ListByMember(c.Request().Context(), actor, memberID,
		c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, pg.Limit, pg.Offset))
}

func (h *Handler) UsedBalance(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	used, err := h.svc.UsedBalance(c.Request().Context(), memberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"used_balance": used})
}

type appealRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) OpenAppeal(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req appealRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.OpenAppeal(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppeals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appeals, err := h.svc.ListAppealsByClaim(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appeals)
}

func (h *Handler) ListPendingAppeals(c echo.Context) error {
	pg := pagination.FromContext(c)
	appeals, total, err := h.svc.ListPendingAppeals(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appeals, total, pg.Limit, pg.Offset))
}

type resolveRequest struct {
	Decision       string `json:"decision"`
	Notes          string `json:"notes,omitempty"`
	OverrideAmount *int64 `json:"override_amount,omitempty"`
}

func (h *Handler) ResolveAppeal(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.ResolveAppeal(c.Request().Context(), actor, id, req.Decision, req.Notes, req.OverrideAmount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}
