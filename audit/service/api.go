package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"sqlsentry/rules"
)

// ListReportsRequest is the read API's query-string shape (spec §4.8:
// "{appName, timeRange, riskLevel, sqlPattern}" with pagination).
type ListReportsRequest struct {
	AppName    string `query:"appName"`
	Since      string `query:"since"`
	Until      string `query:"until"`
	RiskLevel  string `query:"riskLevel" validate:"omitempty,oneof=SAFE LOW MEDIUM HIGH CRITICAL"`
	SQLPattern string `query:"sqlPattern"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int    `query:"offset" validate:"omitempty,min=0"`
}

// API wires the Fiber read surface over a Store.
type API struct {
	Store     *PostgresStore
	validator *validator.Validate
}

// NewAPI builds an API bound to store.
func NewAPI(store *PostgresStore) *API {
	return &API{Store: store, validator: validator.New()}
}

// Register mounts the read endpoints onto app.
func (a *API) Register(app *fiber.App) {
	app.Get("/v1/audit/reports", a.listReports)
}

func (a *API) listReports(c *fiber.Ctx) error {
	var req ListReportsRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid query parameters"})
	}
	if err := a.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	q := Query{
		AppName:    req.AppName,
		SQLPattern: req.SQLPattern,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if req.RiskLevel != "" {
		q.MinRisk = rules.ParseRiskLevel(req.RiskLevel)
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since must be RFC3339"})
		}
		q.Since = t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "until must be RFC3339"})
		}
		q.Until = t
	}

	records, err := a.Store.Find(c.Context(), q)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to query reports"})
	}
	return c.JSON(fiber.Map{"reports": records, "limit": q.Limit, "offset": q.Offset})
}
