package handlers

import (
	"context"

	"realestate-token-api/middleware"
	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

// AccrualWriter is the trusted earnings update used by accrual jobs.
type AccrualWriter interface {
	UpdateAccrual(ctx context.Context, caller services.Identity, id string, input services.AccrualInput) (*models.Investment, error)
}

type AccrualRunner interface {
	Run(ctx context.Context) (int, error)
}

// SetupInternalRoutes registers job-facing routes behind the service token.
// runner may be nil when no in-process accrual is configured.
func SetupInternalRoutes(app *fiber.App, serviceToken string, writer AccrualWriter, runner AccrualRunner) {
	internal := app.Group("/internal", middleware.ServiceTokenAuth(serviceToken))

	internal.Patch("/investments/:id/accrual", func(c *fiber.Ctx) error {
		var input services.AccrualInput
		if err := parseBody(c, &input); err != nil {
			return respondError(c, err)
		}
		investment, err := writer.UpdateAccrual(c.UserContext(), services.ServiceIdentity("internal"), c.Params("id"), input)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toInvestmentResponse(investment))
	})

	if runner != nil {
		internal.Post("/accrual/run", func(c *fiber.Ctx) error {
			credited, err := runner.Run(c.UserContext())
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(fiber.Map{"credited": credited})
		})
	}
}
