//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/go-equip/internal/auth"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/pkg/config"
	"github.com/hugh/go-equip/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := envOr("ADMIN_EMAIL", "admin@example.com")
	password := envOr("ADMIN_PASSWORD", "admin123!")

	admin, err := authService.Register(ctx, auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     envOr("ADMIN_NAME", "Admin"),
		OrgName:  "Demo Rentals",
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}
	org := admin.Organization

	// A technician who joins through an invitation, the same way real users do
	tech, err := authService.Register(ctx, auth.RegisterInput{
		Email:    "tech@example.com",
		Password: password,
		Name:     "Field Tech",
	})
	if err != nil {
		log.Fatalf("failed to create technician: %v", err)
	}

	contexts := orgcontext.NewStore(db)
	invitations := invitation.NewService(db, authz.NewGate(contexts, contexts, logger), logger)
	inv, err := invitations.Create(ctx, invitation.CreateInput{
		Email:           tech.User.Email,
		Role:            rbac.RoleTechnician,
		InvitedByUserID: admin.User.ID,
		Message:         "Welcome to the yard",
	})
	if err != nil {
		log.Fatalf("failed to invite technician: %v", err)
	}
	if _, err := invitations.Accept(ctx, inv.Token, tech.User.ID); err != nil {
		log.Fatalf("failed to accept invitation: %v", err)
	}

	now := time.Now().Unix()
	fleet := []models.Equipment{
		{Name: "Excavator EX-200", SerialNumber: "EX200-0001", Manufacturer: "Komatsu", Location: "Yard A", InstalledAt: now - 400*86400, LastServicedAt: now - 100*86400, ServiceIntervalDs: 90},
		{Name: "Forklift FL-3", SerialNumber: "FL3-1182", Manufacturer: "Toyota", Location: "Warehouse", InstalledAt: now - 200*86400, LastServicedAt: now - 10*86400, ServiceIntervalDs: 30},
		{Name: "Generator G-50", SerialNumber: "G50-0420", Manufacturer: "Cummins", Location: "Yard B", Status: models.EquipmentStatusDown, InstalledAt: now - 900*86400},
	}
	for i := range fleet {
		fleet[i].OrganizationID = org.ID
		if fleet[i].Status == "" {
			fleet[i].Status = models.EquipmentStatusOperational
		}
		fleet[i].Metadata = "{}"
	}
	if err := db.WithContext(ctx).Create(&fleet).Error; err != nil {
		log.Fatalf("failed to create equipment: %v", err)
	}

	alert := models.Alert{
		OrganizationID: org.ID,
		EquipmentID:    fleet[2].ID,
		Title:          "Generator will not start",
		Severity:       models.SeverityHigh,
		Status:         models.AlertStatusOpen,
		RaisedBy:       tech.User.ID,
	}
	if err := db.WithContext(ctx).Create(&alert).Error; err != nil {
		log.Fatalf("failed to create alert: %v", err)
	}

	fmt.Printf("Seed data created successfully!\n")
	fmt.Printf("Admin: %s\n", admin.User.Email)
	fmt.Printf("Technician: %s\n", tech.User.Email)
	fmt.Printf("Organization: %s\n", org.Name)
	fmt.Printf("Equipment: %d, open alerts: 1\n", len(fleet))
	fmt.Printf("Token: %s\n", admin.Token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
