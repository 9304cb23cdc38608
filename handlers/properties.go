package handlers

import (
	"context"
	"mime/multipart"

	"realestate-token-api/middleware"
	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type PropertyCatalog interface {
	List(ctx context.Context, filter services.PropertyFilter) ([]models.Property, error)
	Featured(ctx context.Context, limit int) ([]models.Property, error)
	Get(ctx context.Context, idOrSlug string) (*models.Property, error)
	Create(ctx context.Context, caller services.Identity, input services.PropertyInput) (*models.Property, error)
	Update(ctx context.Context, caller services.Identity, idOrSlug string, input services.PropertyInput, partial bool) (*models.Property, error)
	Delete(ctx context.Context, caller services.Identity, idOrSlug string) error
	AddImage(ctx context.Context, caller services.Identity, idOrSlug string, file *multipart.FileHeader) (*models.PropertyImage, error)
	RemoveImage(ctx context.Context, caller services.Identity, idOrSlug, imageID string) error
	AddFeature(ctx context.Context, caller services.Identity, idOrSlug, feature string) (*models.PropertyFeature, error)
	RemoveFeature(ctx context.Context, caller services.Identity, idOrSlug, featureID string) error
}

type propertyHandler struct {
	catalog PropertyCatalog
}

type featureRequest struct {
	Feature string `json:"feature"`
}

// SetupPropertyRoutes registers /properties. Reads are public; writes need
// an authenticated caller and the catalog requires staff.
func SetupPropertyRoutes(router fiber.Router, catalog PropertyCatalog) {
	h := &propertyHandler{catalog: catalog}
	auth := middleware.RequireAuth()

	router.Get("/properties", h.list)
	router.Get("/properties/featured", h.featured)
	router.Get("/properties/:id", h.get)

	router.Post("/properties", auth, h.create)
	router.Put("/properties/:id", auth, h.update(false))
	router.Patch("/properties/:id", auth, h.update(true))
	router.Delete("/properties/:id", auth, h.delete)

	router.Post("/properties/:id/images", auth, h.addImage)
	router.Delete("/properties/:id/images/:image_id", auth, h.removeImage)
	router.Post("/properties/:id/features", auth, h.addFeature)
	router.Delete("/properties/:id/features/:feature_id", auth, h.removeFeature)
}

func (h *propertyHandler) list(c *fiber.Ctx) error {
	properties, err := h.catalog.List(c.UserContext(), services.PropertyFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPropertyResponses(properties))
}

func (h *propertyHandler) featured(c *fiber.Ctx) error {
	properties, err := h.catalog.Featured(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPropertyResponses(properties))
}

func (h *propertyHandler) get(c *fiber.Ctx) error {
	property, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toPropertyResponse(property))
}

func (h *propertyHandler) create(c *fiber.Ctx) error {
	var input services.PropertyInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	property, err := h.catalog.Create(c.UserContext(), middleware.IdentityFrom(c), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPropertyResponse(property))
}

func (h *propertyHandler) update(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input services.PropertyInput
		if err := parseBody(c, &input); err != nil {
			return respondError(c, err)
		}
		property, err := h.catalog.Update(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), input, partial)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toPropertyResponse(property))
	}
}

func (h *propertyHandler) delete(c *fiber.Ctx) error {
	if err := h.catalog.Delete(c.UserContext(), middleware.IdentityFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *propertyHandler) addImage(c *fiber.Ctx) error {
	file, _ := c.FormFile("image")
	image, err := h.catalog.AddImage(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), file)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toImageResponse(*image))
}

func (h *propertyHandler) removeImage(c *fiber.Ctx) error {
	err := h.catalog.RemoveImage(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), c.Params("image_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *propertyHandler) addFeature(c *fiber.Ctx) error {
	var req featureRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	feature, err := h.catalog.AddFeature(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), req.Feature)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toFeatureResponse(*feature))
}

func (h *propertyHandler) removeFeature(c *fiber.Ctx) error {
	err := h.catalog.RemoveFeature(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), c.Params("feature_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
