package controllers

import (
	"meetclub_go/services"

	"github.com/gofiber/fiber/v2"
)

type HealthController struct {
	health *services.HealthService
}

func NewHealthController(health *services.HealthService) *HealthController {
	return &HealthController{health: health}
}

// GetHealth reports overall service health with dependency probes
func (hc *HealthController) GetHealth(c *fiber.Ctx) error {
	report := hc.health.GetHealthReport()
	return c.Status(hc.health.HTTPStatusForOverall(report.Status)).JSON(report)
}
