package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vehicle-service-server/config"
	"vehicle-service-server/logger"
	"vehicle-service-server/models"
	"vehicle-service-server/store"
	"vehicle-service-server/utils"
)

// TokenPair represents a pair of access and refresh tokens
type TokenPair struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	TokenType    string      `json:"token_type"`
	User         models.User `json:"user"`
}

// ClientInfo identifies where a refresh token was issued.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// AccountService covers identity: registration, login tokens, admin account
// management, servicer profiles and notifications.
type AccountService struct {
	store store.Store
	now   func() time.Time
}

func NewAccountService(s store.Store, now func() time.Time) *AccountService {
	if now == nil {
		now = time.Now
	}
	return &AccountService{store: s, now: now}
}

func checkCredentials(phone, password string) error {
	out := &ValidationError{}
	if !utils.ValidatePhoneNumber(phone) {
		out.Fields = append(out.Fields, FieldError{Field: "phone", Message: "must be exactly 10 digits"})
	}
	if ok, problems := utils.ValidatePasswordStrength(password); !ok {
		out.Fields = append(out.Fields, FieldError{Field: "password", Message: strings.Join(problems, "; ")})
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func (a *AccountService) createAccount(ctx context.Context, repo store.Repository, fullName, email, phone, password string, role models.UserRole) (models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Phone:        utils.NormalizePhone(phone),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// Register creates a plain user account. Servicer and admin accounts come
// from CreateServicerAccount and the seed.
func (a *AccountService) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	if err := checkCredentials(req.Phone, req.Password); err != nil {
		return models.User{}, err
	}
	var user models.User
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		user, err = a.createAccount(ctx, repo, req.FullName, req.Email, req.Phone, req.Password, models.RoleUser)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	logger.Info("✅ User registered", zap.Uint("user_id", user.ID))
	return user, nil
}

func (a *AccountService) Login(ctx context.Context, req models.LoginRequest, client ClientInfo) (TokenPair, error) {
	var pair TokenPair
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		user, err := repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
			return ErrInvalidCredentials
		}
		if !user.IsActive {
			return ErrAccountDisabled
		}
		pair, err = a.issue(ctx, repo, user, client)
		return err
	})
	return pair, err
}

func (a *AccountService) issue(ctx context.Context, repo store.Repository, user models.User, client ClientInfo) (TokenPair, error) {
	access, expiresIn, err := utils.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	rt := &models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: a.now().Add(time.Duration(refreshHours()) * time.Hour),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if err := repo.CreateRefreshToken(ctx, rt); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
		User:         user,
	}, nil
}

func refreshHours() int {
	if config.AppConfig == nil || config.AppConfig.JWT.RefreshExpiryHours <= 0 {
		return 24 * 30
	}
	return config.AppConfig.JWT.RefreshExpiryHours
}

// Refresh issues a new access token and keeps the same refresh token.
func (a *AccountService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		rt, err := repo.RefreshTokenByValue(ctx, refreshToken)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}
		if !rt.IsValid(a.now()) {
			return ErrInvalidToken
		}
		user, err := repo.UserByID(ctx, rt.UserID)
		if err != nil || !user.IsActive {
			return ErrInvalidToken
		}
		access, expiresIn, err := utils.GenerateToken(user.ID, string(user.Role))
		if err != nil {
			return err
		}
		pair = TokenPair{AccessToken: access, RefreshToken: refreshToken, ExpiresIn: expiresIn, TokenType: "Bearer", User: user}
		return nil
	})
	return pair, err
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (a *AccountService) Logout(ctx context.Context, refreshToken string) error {
	return a.store.Transaction(ctx, func(repo store.Repository) error {
		err := repo.RevokeRefreshToken(ctx, refreshToken)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
}

func (a *AccountService) Me(ctx context.Context, userID uint) (models.User, error) {
	var user models.User
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		user, err = repo.UserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	})
	return user, err
}

// requireRole checks the actor inside an open transaction.
func requireRole(ctx context.Context, repo store.Repository, actorID uint, role models.UserRole) error {
	actual, err := repo.RoleOf(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	if err != nil {
		return err
	}
	if actual != role {
		return fmt.Errorf("%w: %s only", ErrForbidden, role)
	}
	return nil
}

// CreateServicerAccount creates a servicer login together with its
// directory entry.
func (a *AccountService) CreateServicerAccount(ctx context.Context, adminID uint, req models.ServicerCreate) (models.Servicer, error) {
	if err := checkCredentials(req.Phone, req.Password); err != nil {
		return models.Servicer{}, err
	}
	var servicer models.Servicer
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		if err := requireRole(ctx, repo, adminID, models.RoleAdmin); err != nil {
			return err
		}
		user, err := a.createAccount(ctx, repo, req.FullName, req.Email, req.Phone, req.Password, models.RoleServicer)
		if err != nil {
			return err
		}
		workTypes := make([]string, 0, len(req.WorkTypes))
		for _, wt := range req.WorkTypes {
			if wt = strings.TrimSpace(wt); wt != "" {
				workTypes = append(workTypes, wt)
			}
		}
		servicer = models.Servicer{
			UserID:        user.ID,
			Name:          strings.TrimSpace(req.Name),
			WorkTypes:     workTypes,
			Location:      strings.TrimSpace(req.Location),
			Phone:         user.Phone,
			Email:         user.Email,
			AvailableTime: req.AvailableTime,
			Status:        models.ServicerAvailable,
			Rating:        models.DefaultServicerRating,
		}
		if servicer.AvailableTime == "" {
			servicer.AvailableTime = "9:00 AM - 6:00 PM"
		}
		return repo.CreateServicer(ctx, &servicer)
	})
	if err != nil {
		return models.Servicer{}, err
	}
	logger.Info("✅ Servicer account created", zap.Uint("servicer_id", servicer.ID), zap.Uint("admin_id", adminID))
	return servicer, nil
}

func (a *AccountService) ListServicers(ctx context.Context, adminID uint) ([]models.Servicer, error) {
	var out []models.Servicer
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		if err := requireRole(ctx, repo, adminID, models.RoleAdmin); err != nil {
			return err
		}
		var err error
		out, err = repo.SearchServicers(ctx, store.ServicerFilter{})
		return err
	})
	return out, err
}

func (a *AccountService) ListUsers(ctx context.Context, adminID uint, role models.UserRole) ([]models.User, error) {
	var out []models.User
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		if err := requireRole(ctx, repo, adminID, models.RoleAdmin); err != nil {
			return err
		}
		var err error
		out, err = repo.ListUsers(ctx, role)
		return err
	})
	return out, err
}

// ListFeedback lists feedback for one servicer, or all when servicerID is 0.
func (a *AccountService) ListFeedback(ctx context.Context, adminID, servicerID uint) ([]models.Feedback, error) {
	var out []models.Feedback
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		if err := requireRole(ctx, repo, adminID, models.RoleAdmin); err != nil {
			return err
		}
		var err error
		out, err = repo.ListFeedback(ctx, servicerID)
		return err
	})
	return out, err
}

// DeactivateUser disables an account. Its role lookups fail afterwards, so
// it can no longer drive any booking operation.
func (a *AccountService) DeactivateUser(ctx context.Context, adminID, userID uint) (models.User, error) {
	var user models.User
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		if err := requireRole(ctx, repo, adminID, models.RoleAdmin); err != nil {
			return err
		}
		if adminID == userID {
			return invalidField("user_id", "admins cannot deactivate themselves")
		}
		var err error
		user, err = repo.UserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		if err != nil {
			return err
		}
		user.IsActive = false
		return repo.SaveUser(ctx, &user)
	})
	if err == nil {
		logger.Info("User deactivated", zap.Uint("user_id", userID), zap.Uint("admin_id", adminID))
	}
	return user, err
}

func (a *AccountService) servicerProfile(ctx context.Context, repo store.Repository, actorID uint) (models.Servicer, error) {
	if err := requireRole(ctx, repo, actorID, models.RoleServicer); err != nil {
		return models.Servicer{}, err
	}
	sv, err := repo.ServicerForUser(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Servicer{}, fmt.Errorf("%w: servicer profile", ErrNotFound)
	}
	return sv, err
}

func (a *AccountService) GetServicerProfile(ctx context.Context, actorID uint) (models.Servicer, error) {
	var sv models.Servicer
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		sv, err = a.servicerProfile(ctx, repo, actorID)
		return err
	})
	return sv, err
}

func (a *AccountService) UpdateServicerStatus(ctx context.Context, actorID uint, status models.ServicerStatus) (models.Servicer, error) {
	if !status.Valid() {
		return models.Servicer{}, invalidField("status", "must be one of: Available Busy Unavailable")
	}
	var sv models.Servicer
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		sv, err = a.servicerProfile(ctx, repo, actorID)
		if err != nil {
			return err
		}
		sv.Status = status
		return repo.SaveServicer(ctx, &sv)
	})
	return sv, err
}

// SetServicerImage stores the profile image URL of the actor's service
// center.
func (a *AccountService) SetServicerImage(ctx context.Context, actorID uint, url string) (models.Servicer, error) {
	var sv models.Servicer
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		sv, err = a.servicerProfile(ctx, repo, actorID)
		if err != nil {
			return err
		}
		sv.ProfileImage = url
		return repo.SaveServicer(ctx, &sv)
	})
	return sv, err
}

func (a *AccountService) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	err := a.store.Transaction(ctx, func(repo store.Repository) error {
		var err error
		out, err = repo.ListNotifications(ctx, userID, unreadOnly)
		return err
	})
	return out, err
}

func (a *AccountService) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	return a.store.Transaction(ctx, func(repo store.Repository) error {
		err := repo.MarkNotificationRead(ctx, userID, notificationID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: notification", ErrNotFound)
		}
		return err
	})
}
