package insurance

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "billing", "physician"))
	readGroup.GET("/insurance/:id", h.GetCoverage)
	readGroup.GET("/insurance", h.ListCoverage)
	readGroup.GET("/insurance/rules", h.ListRules)

	adminGroup := api.Group("", auth.RequireRole("admin", "billing"))
	adminGroup.POST("/insurance", h.CreateCoverage)
	adminGroup.POST("/insurance/rules", h.CreateRule)
	adminGroup.POST("/insurance/patch", h.PatchCoverage)
}

func (h *Handler) CreateCoverage(c echo.Context) error {
	var pi PatientInsurance
	if err := c.Bind(&pi); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCoverage(c.Request().Context(), &pi); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, pi)
}

func (h *Handler) GetCoverage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pi, err := h.svc.GetCoverage(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "coverage not found")
	}
	return c.JSON(http.StatusOK, pi)
}

func (h *Handler) ListCoverage(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	items, err := h.svc.ListCoverageByPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

type patchRequest struct {
	PatientID    *uuid.UUID             `json:"patient_id,omitempty"`
	MemberNumber *string                `json:"member_number,omitempty"`
	PayerName    *string                `json:"payer_name,omitempty"`
	Fields       map[string]interface{} `json:"fields"`
}

func (h *Handler) PatchCoverage(c echo.Context) error {
	var req patchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	criteria := PatchCriteria{
		PatientID:    req.PatientID,
		MemberNumber: req.MemberNumber,
		PayerName:    req.PayerName,
	}
	report, err := h.svc.PatchCoverage(c.Request().Context(), criteria, req.Fields)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) CreateRule(c echo.Context) error {
	var rule ICD10PayerRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRule(c.Request().Context(), &rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListRules(c echo.Context) error {
	payer := c.QueryParam("payer")
	if payer == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payer is required")
	}
	items, err := h.svc.ListRulesByPayer(c.Request().Context(), payer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
