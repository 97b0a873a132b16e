package population

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pophealth/pophealth/internal/domain/risk"
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
	g.POST("/populations", h.CreatePopulation)
	g.GET("/populations", h.ListPopulations)
	g.GET("/populations/:id", h.GetPopulation)
	g.POST("/populations/:id/members", h.AddMember)
	g.GET("/populations/:id/members", h.ListMembers)
	g.GET("/populations/:id/risk-distribution", h.RiskDistribution)
	g.GET("/high-risk-patients", h.HighRiskPatients)
}

func (h *Handler) CreatePopulation(c echo.Context) error {
	var p Population
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePopulation(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPopulation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPopulation(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "population not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPopulations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPopulations(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddMember(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.PopulationID = populationID
	if err := h.svc.AddMember(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMembers(c.Request().Context(), populationID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RiskDistribution(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	dist, err := h.svc.RiskDistribution(c.Request().Context(), populationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, dist)
}

func (h *Handler) HighRiskPatients(c echo.Context) error {
	var opts HighRiskOptions

	if v := c.QueryParam("population_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid population_id")
		}
		opts.PopulationID = &id
	}
	if v := c.QueryParam("min_risk_score"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid min_risk_score")
		}
		opts.MinRiskScore = &min
	}
	if v := c.QueryParam("risk_tiers"); v != "" {
		for _, t := range strings.Split(v, ",") {
			opts.RiskTiers = append(opts.RiskTiers, risk.Tier(t))
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}

	items, err := h.svc.HighRiskPatients(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
