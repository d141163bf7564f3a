package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeledger/config"
	"timeledger/models"
)

// Open connects to the configured database and migrates the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	level := logger.Warn
	if cfg.DatabaseDebug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.SeedAdminPassword != "" {
		if err := seedDefaultAdmin(db, cfg.SeedAdminPassword); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Timesheet{},
		&models.TimesheetEntry{},
		&models.WeeklyPlan{},
		&models.WeeklyPlanWeek{},
		&models.Costing{},
		&models.ApprovalAudit{},
	)
}

func seedDefaultAdmin(db *gorm.DB, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", "admin@localhost").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		org := models.Organization{Name: "Default"}
		if err := tx.FirstOrCreate(&org, models.Organization{Name: "Default"}).Error; err != nil {
			return err
		}

		admin := models.User{
			Email:          "admin@localhost",
			FullName:       "Administrator",
			PasswordHash:   string(hashedPassword),
			Role:           models.RoleAdmin,
			IsSuperAdmin:   true,
			OrganizationID: org.ID,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}

		log.Info().Str("email", admin.Email).Msg("default admin user created")
		return nil
	})
}
