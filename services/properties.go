package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"realestate-token-api/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultFeaturedLimit = 3

type PropertyService struct {
	DB     *gorm.DB
	Images ImageStore
}

func NewPropertyService(db *gorm.DB, images ImageStore) *PropertyService {
	return &PropertyService{DB: db, Images: images}
}

// PropertyInput carries writable catalog fields. Nil means "not supplied";
// on create and full update every required field must be present.
type PropertyInput struct {
	Title           *string          `json:"title" validate:"omitempty,max=255"`
	Location        *string          `json:"location" validate:"omitempty,max=255"`
	Price           *decimal.Decimal `json:"price"`
	PricePerToken   *decimal.Decimal `json:"price_per_token"`
	TotalTokens     *int64           `json:"total_tokens"`
	AvailableTokens *int64           `json:"available_tokens"`
	Description     *string          `json:"description"`
	ROI             *float64         `json:"roi"`
	RentalYield     *float64         `json:"rental_yield"`
	Type            *string          `json:"type"`
	Status          *string          `json:"status"`
	FundingProgress *float64         `json:"funding_progress"`
	Features        []string         `json:"features" validate:"omitempty,dive,required,max=255"`
}

type PropertyFilter struct {
	Type   string
	Status string
	Search string
}

func (s *PropertyService) List(ctx context.Context, filter PropertyFilter) ([]models.Property, error) {
	verr := &ValidationError{}
	if filter.Type != "" && !oneOf(filter.Type, models.PropertyTypes) {
		verr.Add("type", "oneof", "Value must be one of: "+strings.Join(models.PropertyTypes, " "))
	}
	if filter.Status != "" && !oneOf(filter.Status, models.PropertyStatuses) {
		verr.Add("status", "oneof", "Value must be one of: "+strings.Join(models.PropertyStatuses, " "))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	query := withPropertyAssociations(s.DB.WithContext(ctx))
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ?", like, like)
	}

	var properties []models.Property
	if err := query.Order("created_at ASC, id ASC").Find(&properties).Error; err != nil {
		return nil, fmt.Errorf("unable to list properties: %w", err)
	}
	zap.L().Debug("Listed properties", zap.Int("count", len(properties)))
	return properties, nil
}

// Featured returns available properties with the highest ROI first.
func (s *PropertyService) Featured(ctx context.Context, limit int) ([]models.Property, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	var properties []models.Property
	err := withPropertyAssociations(s.DB.WithContext(ctx)).
		Where("status = ?", models.PropertyStatusAvailable).
		Order("roi DESC, created_at ASC").
		Limit(limit).
		Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("unable to list featured properties: %w", err)
	}
	return properties, nil
}

// Get accepts either the property id or its slug.
func (s *PropertyService) Get(ctx context.Context, idOrSlug string) (*models.Property, error) {
	return s.find(withPropertyAssociations(s.DB.WithContext(ctx)), idOrSlug)
}

func (s *PropertyService) Create(ctx context.Context, caller Identity, input PropertyInput) (*models.Property, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	property := &models.Property{ID: uuid.NewString()}
	applyPropertyInput(property, input)
	if input.FundingProgress == nil {
		property.FundingProgress = models.ComputeFundingProgress(property.TotalTokens, property.AvailableTokens)
	}
	if err := validateProperty(property, input, false); err != nil {
		return nil, err
	}
	property.Slug = PropertySlug(property.Title, property.ID)

	for i, feature := range input.Features {
		property.Features = append(property.Features, models.PropertyFeature{
			ID:         uuid.NewString(),
			PropertyID: property.ID,
			Feature:    strings.TrimSpace(feature),
			Position:   i,
		})
	}
	property.Images = []models.PropertyImage{}

	if err := s.DB.WithContext(ctx).Create(property).Error; err != nil {
		zap.L().Error("Failed to create property", zap.String("title", property.Title), zap.Error(err))
		return nil, fmt.Errorf("unable to create property: %w", err)
	}

	zap.L().Info("Property created",
		zap.String("property_id", property.ID),
		zap.String("slug", property.Slug),
		zap.String("by", caller.UserID))
	return property, nil
}

// Update writes the supplied fields. With partial false every required
// field must be supplied. Features are managed through AddFeature and
// RemoveFeature and are ignored here.
//
// Only the supplied columns are written, so a concurrent purchase is not
// undone by an edit that leaves the token supply alone. Edits to the supply
// lock the row while the merged record is validated.
func (s *PropertyService) Update(ctx context.Context, caller Identity, idOrSlug string, input PropertyInput, partial bool) (*models.Property, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var propertyID string
	write := func(tx *gorm.DB) error {
		property, err := s.find(tx, idOrSlug)
		if err != nil {
			return err
		}
		propertyID = property.ID

		applyPropertyInput(property, input)
		if err := validateProperty(property, input, partial); err != nil {
			return err
		}
		columns := propertyColumns(property, input)
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&models.Property{}).Where("id = ?", property.ID).Updates(columns).Error; err != nil {
			zap.L().Error("Failed to update property", zap.String("property_id", property.ID), zap.Error(err))
			return fmt.Errorf("unable to update property: %w", err)
		}
		return nil
	}

	var err error
	if input.TotalTokens != nil || input.AvailableTokens != nil {
		err = db.Transaction(func(tx *gorm.DB) error {
			return write(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
		})
	} else {
		err = write(db)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Property updated", zap.String("property_id", propertyID), zap.String("by", caller.UserID))
	return s.find(withPropertyAssociations(db), propertyID)
}

// Delete removes a property with its images, features and the investments
// made in it.
func (s *PropertyService) Delete(ctx context.Context, caller Identity, idOrSlug string) error {
	if err := requireStaff(caller); err != nil {
		return err
	}

	var images []models.PropertyImage
	var propertyID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := s.find(tx, idOrSlug)
		if err != nil {
			return err
		}
		propertyID = property.ID

		if err := tx.Where("property_id = ?", property.ID).Find(&images).Error; err != nil {
			return fmt.Errorf("unable to load images: %w", err)
		}
		for _, model := range []any{&models.Investment{}, &models.PropertyImage{}, &models.PropertyFeature{}} {
			if err := tx.Where("property_id = ?", property.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("unable to delete property dependents: %w", err)
			}
		}
		if err := tx.Delete(&models.Property{}, "id = ?", property.ID).Error; err != nil {
			return fmt.Errorf("unable to delete property: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, img := range images {
		s.deleteObject(ctx, img.ObjectKey)
	}
	zap.L().Info("Property deleted", zap.String("property_id", propertyID), zap.String("by", caller.UserID))
	return nil
}

// AddImage uploads an image and appends it after the existing ones.
func (s *PropertyService) AddImage(ctx context.Context, caller Identity, idOrSlug string, fileHeader *multipart.FileHeader) (*models.PropertyImage, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	property, err := s.find(db, idOrSlug)
	if err != nil {
		return nil, err
	}
	ext, err := checkImage(fileHeader)
	if err != nil {
		return nil, err
	}

	key := "properties/" + property.ID + "/" + uuid.NewString() + ext
	url, err := s.Images.Upload(ctx, fileHeader, key)
	if err != nil {
		zap.L().Error("Failed to upload property image", zap.String("property_id", property.ID), zap.Error(err))
		return nil, fmt.Errorf("unable to upload image: %w", err)
	}

	position, err := nextPosition(db, &models.PropertyImage{}, property.ID)
	if err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}
	image := &models.PropertyImage{
		ID:         uuid.NewString(),
		PropertyID: property.ID,
		URL:        url,
		ObjectKey:  key,
		Position:   position,
	}
	if err := db.Create(image).Error; err != nil {
		s.deleteObject(ctx, key)
		return nil, fmt.Errorf("unable to save image: %w", err)
	}

	zap.L().Info("Property image added", zap.String("property_id", property.ID), zap.String("image_id", image.ID))
	return image, nil
}

func (s *PropertyService) RemoveImage(ctx context.Context, caller Identity, idOrSlug, imageID string) error {
	if err := requireStaff(caller); err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	property, err := s.find(db, idOrSlug)
	if err != nil {
		return err
	}

	var image models.PropertyImage
	if err := db.First(&image, "id = ? AND property_id = ?", imageID, property.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("image", imageID)
		}
		return fmt.Errorf("unable to query image: %w", err)
	}
	if err := db.Delete(&image).Error; err != nil {
		return fmt.Errorf("unable to delete image: %w", err)
	}

	s.deleteObject(ctx, image.ObjectKey)
	zap.L().Info("Property image removed", zap.String("property_id", property.ID), zap.String("image_id", imageID))
	return nil
}

func (s *PropertyService) AddFeature(ctx context.Context, caller Identity, idOrSlug, feature string) (*models.PropertyFeature, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	feature = strings.TrimSpace(feature)
	switch {
	case feature == "":
		return nil, invalid("feature", "required", "This field is required")
	case len(feature) > 255:
		return nil, invalid("feature", "max", "Value is too long (maximum 255)")
	}

	db := s.DB.WithContext(ctx)
	property, err := s.find(db, idOrSlug)
	if err != nil {
		return nil, err
	}
	position, err := nextPosition(db, &models.PropertyFeature{}, property.ID)
	if err != nil {
		return nil, err
	}

	row := &models.PropertyFeature{
		ID:         uuid.NewString(),
		PropertyID: property.ID,
		Feature:    feature,
		Position:   position,
	}
	if err := db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("unable to save feature: %w", err)
	}
	return row, nil
}

func (s *PropertyService) RemoveFeature(ctx context.Context, caller Identity, idOrSlug, featureID string) error {
	if err := requireStaff(caller); err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	property, err := s.find(db, idOrSlug)
	if err != nil {
		return err
	}
	res := db.Where("id = ? AND property_id = ?", featureID, property.ID).Delete(&models.PropertyFeature{})
	if res.Error != nil {
		return fmt.Errorf("unable to delete feature: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("feature", featureID)
	}
	return nil
}

func (s *PropertyService) find(db *gorm.DB, idOrSlug string) (*models.Property, error) {
	var property models.Property
	query := db
	if _, err := uuid.Parse(idOrSlug); err == nil {
		query = query.Where("id = ?", idOrSlug)
	} else {
		query = query.Where("slug = ?", idOrSlug)
	}
	if err := query.First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("property", idOrSlug)
		}
		return nil, fmt.Errorf("unable to query property: %w", err)
	}
	return &property, nil
}

func (s *PropertyService) deleteObject(ctx context.Context, key string) {
	if key == "" || s.Images == nil {
		return
	}
	if err := s.Images.Delete(ctx, key); err != nil {
		zap.L().Warn("Failed to delete stored image", zap.String("key", key), zap.Error(err))
	}
}

func withPropertyAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Features", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

func nextPosition(db *gorm.DB, model any, propertyID string) (int, error) {
	var max *int
	err := db.Model(model).
		Where("property_id = ?", propertyID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("unable to compute position: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// PropertySlug derives the URL slug from the title plus the id prefix.
func PropertySlug(title, id string) string {
	base := slug.Make(title)
	if base == "" {
		return id
	}
	if len(base) > 280 {
		base = strings.Trim(base[:280], "-")
	}
	return base + "-" + id[:8]
}

func applyPropertyInput(p *models.Property, in PropertyInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Location != nil {
		p.Location = strings.TrimSpace(*in.Location)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.PricePerToken != nil {
		p.PricePerToken = *in.PricePerToken
	}
	if in.TotalTokens != nil {
		p.TotalTokens = *in.TotalTokens
	}
	if in.AvailableTokens != nil {
		p.AvailableTokens = *in.AvailableTokens
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ROI != nil {
		p.ROI = *in.ROI
	}
	if in.RentalYield != nil {
		p.RentalYield = *in.RentalYield
	}
	if in.Type != nil {
		p.Type = *in.Type
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.FundingProgress != nil {
		p.FundingProgress = *in.FundingProgress
	}
}

// propertyColumns maps the supplied fields to their merged values.
func propertyColumns(p *models.Property, in PropertyInput) map[string]any {
	columns := map[string]any{}
	set := func(supplied bool, column string, value any) {
		if supplied {
			columns[column] = value
		}
	}
	set(in.Title != nil, "title", p.Title)
	set(in.Location != nil, "location", p.Location)
	set(in.Price != nil, "price", p.Price)
	set(in.PricePerToken != nil, "price_per_token", p.PricePerToken)
	set(in.TotalTokens != nil, "total_tokens", p.TotalTokens)
	set(in.AvailableTokens != nil, "available_tokens", p.AvailableTokens)
	set(in.Description != nil, "description", p.Description)
	set(in.ROI != nil, "roi", p.ROI)
	set(in.RentalYield != nil, "rental_yield", p.RentalYield)
	set(in.Type != nil, "type", p.Type)
	set(in.Status != nil, "status", p.Status)
	set(in.FundingProgress != nil, "funding_progress", p.FundingProgress)
	return columns
}

// validateProperty checks the merged record. Required-field checks only
// apply when the caller had to send the full representation.
func validateProperty(p *models.Property, in PropertyInput, partial bool) error {
	verr := &ValidationError{}
	if !partial {
		required := []struct {
			field   string
			present bool
		}{
			{"title", in.Title != nil},
			{"location", in.Location != nil},
			{"price", in.Price != nil},
			{"price_per_token", in.PricePerToken != nil},
			{"total_tokens", in.TotalTokens != nil},
			{"available_tokens", in.AvailableTokens != nil},
			{"roi", in.ROI != nil},
			{"rental_yield", in.RentalYield != nil},
			{"type", in.Type != nil},
			{"status", in.Status != nil},
		}
		for _, r := range required {
			if !r.present {
				verr.Add(r.field, "required", "This field is required")
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}
	}

	if p.Title == "" {
		verr.Add("title", "required", "This field may not be blank")
	}
	if p.Location == "" {
		verr.Add("location", "required", "This field may not be blank")
	}
	checkMoney(verr, "price", p.Price, false)
	checkMoney(verr, "price_per_token", p.PricePerToken, false)
	if p.TotalTokens <= 0 {
		verr.Add("total_tokens", "gt", "Value must be greater than 0")
	}
	if p.AvailableTokens < 0 {
		verr.Add("available_tokens", "gte", "Value must not be negative")
	} else if p.AvailableTokens > p.TotalTokens {
		verr.Add("available_tokens", "lte", "Value must not exceed total_tokens")
	}
	if !oneOf(p.Type, models.PropertyTypes) {
		verr.Add("type", "oneof", "Value must be one of: "+strings.Join(models.PropertyTypes, " "))
	}
	if !oneOf(p.Status, models.PropertyStatuses) {
		verr.Add("status", "oneof", "Value must be one of: "+strings.Join(models.PropertyStatuses, " "))
	}
	if p.RentalYield < 0 {
		verr.Add("rental_yield", "gte", "Value must not be negative")
	}
	if p.FundingProgress < 0 || p.FundingProgress > 100 {
		verr.Add("funding_progress", "range", "Value must be between 0 and 100")
	}
	return verr.OrNil()
}
