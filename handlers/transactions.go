package handlers

import (
	"context"

	"realestate-token-api/middleware"
	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type TransactionLedger interface {
	List(ctx context.Context, caller services.Identity) ([]models.Transaction, error)
	Get(ctx context.Context, caller services.Identity, id string) (*models.Transaction, error)
	Create(ctx context.Context, caller services.Identity, input services.CreateTransactionInput) (*models.Transaction, error)
	Update(ctx context.Context, caller services.Identity, id string, input services.UpdateTransactionInput) (*models.Transaction, error)
	Delete(ctx context.Context, caller services.Identity, id string) error
}

func SetupTransactionRoutes(router fiber.Router, ledger TransactionLedger) {
	auth := middleware.RequireAuth()

	router.Get("/transactions", auth, func(c *fiber.Ctx) error {
		transactions, err := ledger.List(c.UserContext(), middleware.IdentityFrom(c))
		if err != nil {
			return respondError(c, err)
		}
		out := make([]TransactionResponse, 0, len(transactions))
		for i := range transactions {
			out = append(out, toTransactionResponse(&transactions[i]))
		}
		return c.JSON(out)
	})

	router.Post("/transactions", auth, func(c *fiber.Ctx) error {
		var input services.CreateTransactionInput
		if err := parseBody(c, &input); err != nil {
			return respondError(c, err)
		}
		t, err := ledger.Create(c.UserContext(), middleware.IdentityFrom(c), input)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(toTransactionResponse(t))
	})

	router.Get("/transactions/:id", auth, func(c *fiber.Ctx) error {
		t, err := ledger.Get(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toTransactionResponse(t))
	})

	router.Patch("/transactions/:id", auth, func(c *fiber.Ctx) error {
		var input services.UpdateTransactionInput
		if err := parseBody(c, &input); err != nil {
			return respondError(c, err)
		}
		t, err := ledger.Update(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), input)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toTransactionResponse(t))
	})

	router.Delete("/transactions/:id", auth, func(c *fiber.Ctx) error {
		if err := ledger.Delete(c.UserContext(), middleware.IdentityFrom(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
