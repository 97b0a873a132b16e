package risk

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pophealth/pophealth/internal/platform/auth"
	"github.com/pophealth/pophealth/internal/platform/fhir"
	"github.com/pophealth/pophealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	role := auth.RequireRole("admin", "care_manager", "analyst")

	g := api.Group("", role)
	g.POST("/risk-scores", h.CreateScore)
	g.POST("/risk-scores/calculate/hcc", h.CalculateHCC)
	g.POST("/risk-scores/calculate/hospitalization", h.CalculateHospitalization)
	g.GET("/risk-scores", h.ListScores)
	g.GET("/risk-scores/:id", h.GetScore)
	g.GET("/patients/:patientId/risk-profile", h.GetProfile)

	f := fhirGroup.Group("", role)
	f.GET("/RiskAssessment/:id", h.GetScoreFHIR)
}

func (h *Handler) CreateScore(c echo.Context) error {
	var input ScoreInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	score, err := h.svc.RecordScore(c.Request().Context(), input)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, score)
}

type hccRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	Conditions []string  `json:"conditions"`
}

func (h *Handler) CalculateHCC(c echo.Context) error {
	var req hccRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	score, err := h.svc.ScoreHCC(c.Request().Context(), req.PatientID, req.Conditions)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, score)
}

type hospitalizationRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	HospitalizationRiskInput
}

func (h *Handler) CalculateHospitalization(c echo.Context) error {
	var req hospitalizationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	score, err := h.svc.ScoreHospitalizationRisk(c.Request().Context(), req.PatientID, req.HospitalizationRiskInput)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, score)
}

func (h *Handler) ListScores(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f Filters
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	f.ModelName = c.QueryParam("model_name")
	f.ScoreType = ScoreType(c.QueryParam("score_type"))
	f.RiskTier = Tier(c.QueryParam("risk_tier"))
	if v := c.QueryParam("is_active"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}

	scores, total, err := h.svc.ListScores(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(scores, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetScore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	score, err := h.svc.GetScore(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "risk score not found")
	}
	return c.JSON(http.StatusOK, score)
}

func (h *Handler) GetProfile(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	profile, err := h.svc.PatientProfile(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if profile == nil {
		// No risk data is a valid state, not an error
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetScoreFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "invalid", "invalid id"))
	}
	score, err := h.svc.GetScore(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("RiskAssessment", id.String()))
	}
	return c.JSON(http.StatusOK, score.ToFHIR())
}
