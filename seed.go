package main

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"vehicle-service-server/config"
	"vehicle-service-server/logger"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
	"vehicle-service-server/store"
	"vehicle-service-server/utils"
)

var demoServicers = []models.ServicerCreate{
	{
		FullName:  "Ravi Menon",
		Email:     "citymotors@vehicleservice.local",
		Phone:     "9847000001",
		Name:      "City Motors",
		WorkTypes: []string{"General Service", "Engine Repair", "Oil Change"},
		Location:  "Kochi",
	},
	{
		FullName:      "Fathima Rahman",
		Email:         "quickfix@vehicleservice.local",
		Phone:         "9847000002",
		Name:          "QuickFix Auto Care",
		WorkTypes:     []string{"Brake Service", "AC Repair", "Battery"},
		Location:      "Thrissur",
		AvailableTime: "8:00 AM - 8:00 PM",
	},
	{
		FullName:  "Arjun Nair",
		Email:     "wheelworks@vehicleservice.local",
		Phone:     "9847000003",
		Name:      "Wheel Works",
		WorkTypes: []string{"Tyre Service", "Wheel Alignment", "General Service"},
		Location:  "Kozhikode",
	},
}

// seedDemo creates the admin account and a few service centers. Existing
// records are left alone so it is safe on every start.
func seedDemo(ctx context.Context, st store.Store, accounts *services.AccountService, cfg config.SeedConfig) error {
	admin, err := ensureAdmin(ctx, st, cfg)
	if err != nil {
		return err
	}

	created := 0
	for _, req := range demoServicers {
		req.Password = cfg.AdminPassword
		_, err := accounts.CreateServicerAccount(ctx, admin.ID, req)
		if errors.Is(err, services.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}
	logger.Info("✅ Demo data seeded", zap.String("admin", admin.Email), zap.Int("servicers_created", created))
	return nil
}

func ensureAdmin(ctx context.Context, st store.Store, cfg config.SeedConfig) (models.User, error) {
	email := strings.ToLower(cfg.AdminEmail)
	var admin models.User
	err := st.Transaction(ctx, func(repo store.Repository) error {
		existing, err := repo.UserByEmail(ctx, email)
		if err == nil {
			admin = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		hash, err := utils.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}
		admin = models.User{
			FullName:     "Administrator",
			Email:        email,
			Phone:        "9847000000",
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}
		return repo.CreateUser(ctx, &admin)
	})
	return admin, err
}
