package cohort

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pophealth/pophealth/internal/platform/auth"
	"github.com/pophealth/pophealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "care_manager", "analyst")

	g := api.Group("", role)
	g.POST("/cohorts", h.CreateCohort)
	g.GET("/cohorts", h.ListCohorts)
	g.GET("/cohorts/:id", h.GetCohort)
	g.POST("/cohorts/:id/members", h.AddMember)
	g.GET("/cohorts/:id/members", h.ListMembers)
	g.GET("/cohorts/:id/stratification", h.Stratify)
	g.POST("/care-gaps", h.OpenCareGap)
	g.GET("/care-gaps/:id", h.GetCareGap)
	g.POST("/care-gaps/:id/resolve", h.ResolveCareGap)
	g.GET("/patients/:patientId/care-gaps", h.ListCareGaps)
}

func (h *Handler) CreateCohort(c echo.Context) error {
	var co Cohort
	if err := c.Bind(&co); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCohort(c.Request().Context(), &co); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *Handler) GetCohort(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	co, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, co)
}

func (h *Handler) ListCohorts(c echo.Context) error {
	populationID, err := uuid.Parse(c.QueryParam("population_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "population_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCohorts(c.Request().Context(), populationID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddMember(c echo.Context) error {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.CohortID = cohortID
	if err := h.svc.AddMember(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListMembers(c.Request().Context(), cohortID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Stratify(c echo.Context) error {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	strat, err := h.svc.Stratify(c.Request().Context(), cohortID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, strat)
}

func (h *Handler) OpenCareGap(c echo.Context) error {
	var g CareGap
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.OpenCareGap(c.Request().Context(), &g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetCareGap(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.GetCareGap(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "care gap not found")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ResolveCareGap(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.ResolveCareGap(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrGapResolved) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListCareGaps(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCareGaps(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
