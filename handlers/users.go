package handlers

import (
	"context"
	"mime/multipart"

	"realestate-token-api/middleware"
	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type UserManager interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	List(ctx context.Context, caller services.Identity) ([]models.User, error)
	Get(ctx context.Context, caller services.Identity, id string) (*models.User, error)
	Update(ctx context.Context, caller services.Identity, id string, input services.UpdateUserInput, partial bool) (*models.User, error)
	Delete(ctx context.Context, caller services.Identity, id string) error
	SetAvatar(ctx context.Context, caller services.Identity, id string, file *multipart.FileHeader) (*models.User, error)
}

type userHandler struct {
	users UserManager
}

// SetupUserRoutes registers /users. Registration is open; everything else
// needs an authenticated caller and the service decides owner/staff access.
func SetupUserRoutes(router fiber.Router, users UserManager) {
	h := &userHandler{users: users}

	router.Post("/users", h.register)

	auth := middleware.RequireAuth()
	router.Get("/users", auth, h.list)
	router.Get("/users/me", auth, h.me)
	router.Get("/users/:id", auth, h.get)
	router.Put("/users/:id", auth, h.update(false))
	router.Patch("/users/:id", auth, h.update(true))
	router.Delete("/users/:id", auth, h.delete)
	router.Post("/users/:id/avatar", auth, h.avatar)
}

func (h *userHandler) register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	user, err := h.users.Register(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

func (h *userHandler) list(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return c.JSON(out)
}

func (h *userHandler) me(c *fiber.Ctx) error {
	caller := middleware.IdentityFrom(c)
	user, err := h.users.Get(c.UserContext(), caller, caller.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}

func (h *userHandler) get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}

func (h *userHandler) update(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input services.UpdateUserInput
		if err := parseBody(c, &input); err != nil {
			return respondError(c, err)
		}
		user, err := h.users.Update(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), input, partial)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toUserResponse(user))
	}
}

func (h *userHandler) delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.UserContext(), middleware.IdentityFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *userHandler) avatar(c *fiber.Ctx) error {
	file, _ := c.FormFile("avatar")
	user, err := h.users.SetAvatar(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), file)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}
