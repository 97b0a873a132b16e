package quality

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pophealth/pophealth/internal/domain/population"
	"github.com/pophealth/pophealth/internal/platform/auth"
	"github.com/pophealth/pophealth/internal/platform/fhir"
)

// PopulationDirectory resolves population identity for MeasureReport output.
type PopulationDirectory interface {
	GetPopulation(ctx context.Context, id uuid.UUID) (*population.Population, error)
}

type Handler struct {
	svc         *Service
	populations PopulationDirectory
	defaultYear int
}

func NewHandler(svc *Service, populations PopulationDirectory, defaultYear int) *Handler {
	return &Handler{svc: svc, populations: populations, defaultYear: defaultYear}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	role := auth.RequireRole("admin", "care_manager", "analyst")
	admin := auth.RequireRole("admin")

	g := api.Group("", role)
	g.POST("/quality-measures", h.CreateMeasure, admin)
	g.GET("/quality-measures", h.ListMeasures)
	g.GET("/quality-measures/:id", h.GetMeasure)
	g.POST("/quality-measures/seed", h.SeedHEDIS, admin)
	g.POST("/populations/:id/measures/:measureId/calculate", h.CalculatePerformance)
	g.GET("/populations/:id/scorecard", h.Scorecard)
	g.GET("/populations/:id/quality-gaps", h.CareGaps)
	g.PUT("/patients/:patientId/measures/:measureId", h.UpsertPatientMeasure)
	g.GET("/patients/:patientId/measures", h.PatientMeasures)

	f := fhirGroup.Group("", role)
	f.GET("/Measure/:id", h.GetMeasureFHIR)
	f.GET("/MeasureReport/:id", h.GetMeasureReportFHIR)
}

// period returns the measure period from the query string, defaulting to the
// configured reporting year.
func (h *Handler) period(c echo.Context) string {
	if v := c.QueryParam("period"); v != "" {
		return v
	}
	return strconv.Itoa(h.defaultYear)
}

func (h *Handler) CreateMeasure(c echo.Context) error {
	var m QualityMeasure
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMeasure(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	var f MeasureFilters
	f.Category = MeasureCategory(c.QueryParam("category"))
	f.MeasureType = MeasureType(c.QueryParam("measure_type"))
	f.Search = c.QueryParam("search")
	if v := c.QueryParam("reporting_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid reporting_year")
		}
		f.ReportingYear = &year
	}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid is_active")
		}
		f.IsActive = &active
	}

	items, err := h.svc.ListMeasures(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetMeasure(c echo.Context) error {
	// Accepts either the row UUID or the business measure id (HEDIS-BCS).
	raw := c.Param("id")
	ctx := c.Request().Context()

	var m *QualityMeasure
	var err error
	if id, parseErr := uuid.Parse(raw); parseErr == nil {
		m, err = h.svc.GetMeasure(ctx, id)
	} else {
		m, err = h.svc.GetMeasureByMeasureID(ctx, raw)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) SeedHEDIS(c echo.Context) error {
	year := h.defaultYear
	if v := c.QueryParam("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		year = parsed
	}
	count, err := h.svc.SeedHEDISMeasures(c.Request().Context(), year)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"seeded": count})
}

func (h *Handler) CalculatePerformance(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid population id")
	}
	measureID, err := uuid.Parse(c.Param("measureId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid measure id")
	}

	perf, err := h.svc.CalculatePerformance(c.Request().Context(), populationID, measureID, h.period(c))
	if err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, perf)
}

func (h *Handler) Scorecard(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid population id")
	}
	card, err := h.svc.PopulationScorecard(c.Request().Context(), populationID, h.period(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, card)
}

func (h *Handler) CareGaps(c echo.Context) error {
	populationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid population id")
	}
	gaps, err := h.svc.IdentifyCareGaps(c.Request().Context(), populationID, h.period(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, gaps)
}

func (h *Handler) UpsertPatientMeasure(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	measureID, err := uuid.Parse(c.Param("measureId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid measure id")
	}

	var pm PatientQualityMeasure
	if err := c.Bind(&pm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pm.PatientID = patientID
	pm.QualityMeasureID = measureID
	if pm.MeasurePeriod == "" {
		pm.MeasurePeriod = h.period(c)
	}

	if err := h.svc.UpsertPatientMeasure(c.Request().Context(), &pm); err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pm)
}

func (h *Handler) PatientMeasures(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.svc.PatientMeasures(c.Request().Context(), patientID, c.QueryParam("period"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetMeasureFHIR(c echo.Context) error {
	raw := c.Param("id")
	ctx := c.Request().Context()

	var m *QualityMeasure
	var err error
	if id, parseErr := uuid.Parse(raw); parseErr == nil {
		m, err = h.svc.GetMeasure(ctx, id)
	} else {
		m, err = h.svc.GetMeasureByMeasureID(ctx, raw)
	}
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Measure", raw))
	}
	return c.JSON(http.StatusOK, m.ToFHIR())
}

func (h *Handler) GetMeasureReportFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "invalid", "invalid id"))
	}
	ctx := c.Request().Context()

	detail, err := h.svc.PopulationMeasure(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("MeasureReport", id.String()))
	}
	pop, err := h.populations.GetPopulation(ctx, detail.PopulationID)
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Group", detail.PopulationID.String()))
	}
	return c.JSON(http.StatusOK, MeasureReportFHIR(detail, PopulationRef{
		ID:          pop.ID,
		Name:        pop.Name,
		FHIRGroupID: pop.FHIRGroupID,
	}))
}
