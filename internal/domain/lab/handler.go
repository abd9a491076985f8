package lab

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "lab_tech"))
	readGroup.GET("/lab/tests", h.ListTests)
	readGroup.GET("/lab/orders", h.ListOrders)
	readGroup.GET("/lab/orders/:id", h.GetOrder)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	writeGroup.POST("/lab/orders", h.CreateOrder)
	writeGroup.POST("/lab/orders/:id/cancel", h.CancelOrder)
	writeGroup.POST("/lab/order-tests/:id/result", h.EnterResult)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/lab/tests", h.CreateTest)
	adminGroup.POST("/lab/reconcile", h.Reconcile)
}

// -- Test catalog --

func (h *Handler) CreateTest(c echo.Context) error {
	var t LabTest
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTest(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTests(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTests(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Orders --

type createOrderRequest struct {
	PatientID     uuid.UUID `json:"patient_id"`
	ClinicianID   uuid.UUID `json:"clinician_id"`
	Priority      *string   `json:"priority,omitempty"`
	ClinicalNotes *string   `json:"clinical_notes,omitempty"`
	TestCodes     []string  `json:"test_codes"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o := &LabOrder{
		PatientID:     req.PatientID,
		ClinicianID:   req.ClinicianID,
		Priority:      req.Priority,
		ClinicalNotes: req.ClinicalNotes,
	}
	if err := h.svc.CreateOrder(c.Request().Context(), o, req.TestCodes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab order not found")
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListOrdersByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	params := map[string]string{}
	if s := c.QueryParam("status"); s != "" {
		params["status"] = s
	}
	if p := c.QueryParam("priority"); p != "" {
		params["priority"] = p
	}
	items, total, err := h.svc.SearchOrders(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.CancelOrder(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Results --

type enterResultRequest struct {
	Result      string   `json:"result"`
	ResultValue *float64 `json:"result_value,omitempty"`
}

func (h *Handler) EnterResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req enterResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.EnterResult(c.Request().Context(), id, req.Result, req.ResultValue)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

// -- Reconciliation --

func (h *Handler) Reconcile(c echo.Context) error {
	report, err := h.svc.ReconcileOrders(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
