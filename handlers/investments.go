package handlers

import (
	"context"

	"realestate-token-api/middleware"
	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type InvestmentLedger interface {
	Create(ctx context.Context, caller services.Identity, input services.CreateInvestmentInput) (*models.Investment, error)
	List(ctx context.Context, caller services.Identity) ([]models.Investment, error)
	Get(ctx context.Context, caller services.Identity, id string) (*models.Investment, error)
	Portfolio(ctx context.Context, caller services.Identity) (*services.PortfolioSummary, error)
	Adjust(ctx context.Context, caller services.Identity, id string, input services.AccrualInput) (*models.Investment, error)
	Sell(ctx context.Context, caller services.Identity, id string, tokens int64) (*services.SaleResult, error)
}

type investmentHandler struct {
	ledger InvestmentLedger
}

type sellRequest struct {
	Tokens int64 `json:"tokens"`
}

// SetupInvestmentRoutes registers /investments. Every route is scoped to
// the authenticated caller.
func SetupInvestmentRoutes(router fiber.Router, ledger InvestmentLedger) {
	h := &investmentHandler{ledger: ledger}
	auth := middleware.RequireAuth()

	router.Get("/investments", auth, h.list)
	router.Post("/investments", auth, h.create)
	router.Get("/investments/portfolio", auth, h.portfolio)
	router.Get("/investments/:id", auth, h.get)
	router.Patch("/investments/:id", auth, h.adjust)
	router.Post("/investments/:id/sell", auth, h.sell)
}

func (h *investmentHandler) list(c *fiber.Ctx) error {
	investments, err := h.ledger.List(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]InvestmentResponse, 0, len(investments))
	for i := range investments {
		out = append(out, toInvestmentResponse(&investments[i]))
	}
	return c.JSON(out)
}

// create ignores any client-supplied owner; the ledger uses the caller.
func (h *investmentHandler) create(c *fiber.Ctx) error {
	var input services.CreateInvestmentInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	investment, err := h.ledger.Create(c.UserContext(), middleware.IdentityFrom(c), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toInvestmentResponse(investment))
}

func (h *investmentHandler) portfolio(c *fiber.Ctx) error {
	summary, err := h.ledger.Portfolio(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPortfolioResponse(summary))
}

func (h *investmentHandler) get(c *fiber.Ctx) error {
	investment, err := h.ledger.Get(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toInvestmentResponse(investment))
}

func (h *investmentHandler) adjust(c *fiber.Ctx) error {
	var input services.AccrualInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	investment, err := h.ledger.Adjust(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toInvestmentResponse(investment))
}

func (h *investmentHandler) sell(c *fiber.Ctx) error {
	var req sellRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	result, err := h.ledger.Sell(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), req.Tokens)
	if err != nil {
		return respondError(c, err)
	}

	out := SaleResponse{Transaction: toTransactionResponse(&result.Transaction)}
	if result.Investment != nil {
		inv := toInvestmentResponse(result.Investment)
		out.Investment = &inv
	}
	return c.JSON(out)
}
