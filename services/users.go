package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"realestate-token-api/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	DB     *gorm.DB
	Images ImageStore
	Events EventPublisher

	hashCost int
	now      func() time.Time
}

func NewUserService(db *gorm.DB, images ImageStore, events EventPublisher) *UserService {
	return &UserService{
		DB:       db,
		Images:   images,
		Events:   events,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Email         string  `json:"email" validate:"required,email,max=254"`
	Password      string  `json:"password" validate:"required,min=8"`
	FirstName     string  `json:"first_name" validate:"max=150"`
	LastName      string  `json:"last_name" validate:"max=150"`
	KYCVerified   bool    `json:"kyc_verified"`
	WalletAddress *string `json:"wallet_address" validate:"omitempty,max=255"`
	ReferralCode  *string `json:"referral_code" validate:"omitempty,max=20"`
}

// UpdateUserInput carries the writable user fields. Nil means "not supplied".
type UpdateUserInput struct {
	Email         *string `json:"email" validate:"omitempty,email,max=254"`
	Password      *string `json:"password" validate:"omitempty,min=8"`
	FirstName     *string `json:"first_name" validate:"omitempty,max=150"`
	LastName      *string `json:"last_name" validate:"omitempty,max=150"`
	KYCVerified   *bool   `json:"kyc_verified"`
	WalletAddress *string `json:"wallet_address" validate:"omitempty,max=255"`
	ReferralCode  *string `json:"referral_code" validate:"omitempty,max=20"`
}

// Register creates a new account. It is open to anonymous callers.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = normalizeEmail(input.Email)
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	if err := s.checkUnique(db, "", input.Email, input.ReferralCode); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	referralCode := input.ReferralCode
	if referralCode == nil || *referralCode == "" {
		code, err := s.newReferralCode(db)
		if err != nil {
			return nil, err
		}
		referralCode = &code
	}

	user := &models.User{
		ID:               uuid.NewString(),
		Email:            input.Email,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		PasswordHash:     string(hash),
		KYCVerified:      input.KYCVerified,
		WalletAddress:    emptyToNil(input.WalletAddress),
		ReferralCode:     referralCode,
		ReferralEarnings: decimal.Zero,
		IsActive:         true,
		DateJoined:       s.now().UTC(),
	}
	if err := db.Omit("Investments", "Transactions").Create(user).Error; err != nil {
		zap.L().Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return nil, fmt.Errorf("unable to create user: %w", err)
	}

	zap.L().Info("User registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	publish(ctx, s.Events, UserEventsStream, EventUserCreated, UserEvent{UserID: user.ID, Email: user.Email})
	return user, nil
}

// List returns every user. Any authenticated identity may list.
func (s *UserService) List(ctx context.Context, caller Identity) ([]models.User, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("date_joined ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("unable to list users: %w", err)
	}
	return users, nil
}

// Get returns one user. Any authenticated identity may read.
func (s *UserService) Get(ctx context.Context, caller Identity, id string) (*models.User, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	return s.find(s.DB.WithContext(ctx), id)
}

// GetActive loads an active user for request authentication.
func (s *UserService) GetActive(ctx context.Context, id string) (*models.User, error) {
	user, err := s.find(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user %s is inactive", ErrUnauthorized, id)
	}
	return user, nil
}

// Update modifies a user. Only the owner or staff may write. With partial
// false (PUT) email and password are required.
func (s *UserService) Update(ctx context.Context, caller Identity, id string, input UpdateUserInput, partial bool) (*models.User, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	user, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrStaff(caller, user.ID); err != nil {
		zap.L().Warn("Rejected user update", zap.String("caller", caller.UserID), zap.String("user_id", id))
		return nil, err
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		input.Email = &email
	}
	verr := &ValidationError{}
	if !partial {
		if input.Email == nil {
			verr.Add("email", "required", "This field is required")
		}
		if input.Password == nil {
			verr.Add("password", "required", "This field is required")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	email := ""
	if input.Email != nil && *input.Email != user.Email {
		email = *input.Email
	}
	var code *string
	if input.ReferralCode != nil && *input.ReferralCode != "" &&
		(user.ReferralCode == nil || *input.ReferralCode != *user.ReferralCode) {
		code = input.ReferralCode
	}
	if err := s.checkUnique(db, user.ID, email, code); err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.KYCVerified != nil {
		user.KYCVerified = *input.KYCVerified
	}
	if input.WalletAddress != nil {
		user.WalletAddress = emptyToNil(input.WalletAddress)
	}
	if input.ReferralCode != nil {
		user.ReferralCode = emptyToNil(input.ReferralCode)
	}
	if input.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := db.Omit("Investments", "Transactions").Save(user).Error; err != nil {
		zap.L().Error("Failed to update user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to update user: %w", err)
	}

	zap.L().Info("User updated", zap.String("user_id", id), zap.String("by", caller.UserID))
	return user, nil
}

// Delete removes a user together with the investments and transactions it
// owns. Tokens held by those investments go back to the property supply.
// Staff only.
func (s *UserService) Delete(ctx context.Context, caller Identity, id string) error {
	if err := requireStaff(caller); err != nil {
		zap.L().Warn("Rejected user delete", zap.String("caller", caller.UserID), zap.String("user_id", id))
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(tx, id); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
			return fmt.Errorf("unable to delete transactions: %w", err)
		}
		var held []struct {
			PropertyID string
			Tokens     int64
		}
		err := tx.Model(&models.Investment{}).
			Select("property_id, SUM(tokens_owned) AS tokens").
			Where("user_id = ?", id).
			Group("property_id").
			Scan(&held).Error
		if err != nil {
			return fmt.Errorf("unable to sum held tokens: %w", err)
		}
		for _, h := range held {
			if err := releaseTokens(tx, &models.Property{ID: h.PropertyID}, h.Tokens); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Investment{}).Error; err != nil {
			return fmt.Errorf("unable to delete investments: %w", err)
		}
		if err := tx.Delete(&models.User{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("unable to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("User deleted", zap.String("user_id", id), zap.String("by", caller.UserID))
	publish(ctx, s.Events, UserEventsStream, EventUserDeleted, UserEvent{UserID: id})
	return nil
}

// SetAvatar uploads a new avatar image for the user.
func (s *UserService) SetAvatar(ctx context.Context, caller Identity, id string, fileHeader *multipart.FileHeader) (*models.User, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	user, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrStaff(caller, user.ID); err != nil {
		return nil, err
	}
	ext, err := checkImage(fileHeader)
	if err != nil {
		return nil, err
	}

	key := "avatars/" + user.ID + "/" + uuid.NewString() + ext
	url, err := s.Images.Upload(ctx, fileHeader, key)
	if err != nil {
		zap.L().Error("Failed to upload avatar", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to upload avatar: %w", err)
	}

	if err := db.Model(user).Update("avatar_url", url).Error; err != nil {
		return nil, fmt.Errorf("unable to save avatar: %w", err)
	}
	user.AvatarURL = &url
	return user, nil
}

// Authenticate checks credentials and stamps last_login. Unknown emails,
// wrong passwords and inactive accounts are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	db := s.DB.WithContext(ctx)

	var user models.User
	err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		zap.L().Info("Failed login", zap.String("user_id", user.ID))
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	now := s.now().UTC()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		zap.L().Warn("Failed to stamp last_login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now
	return &user, nil
}

func (s *UserService) find(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", id)
		}
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return &user, nil
}

// checkUnique rejects a duplicate email or referral code with ErrConflict.
// Empty values are skipped; excludeID ignores the record being updated.
func (s *UserService) checkUnique(db *gorm.DB, excludeID, email string, referralCode *string) error {
	if email != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, excludeID).Count(&count).Error; err != nil {
			return fmt.Errorf("unable to check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
	}
	if referralCode != nil && *referralCode != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("referral_code = ? AND id <> ?", *referralCode, excludeID).Count(&count).Error; err != nil {
			return fmt.Errorf("unable to check referral code: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: user with this referral code already exists", ErrConflict)
		}
	}
	return nil
}

func (s *UserService) newReferralCode(db *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code := "REF" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		var count int64
		if err := db.Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("unable to check referral code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("unable to allocate a unique referral code")
}

// normalizeEmail trims whitespace and lower-cases the domain part.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
