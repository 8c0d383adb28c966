package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Repository interface {
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetDoctor(ctx context.Context, id uint) (*Doctor, error)
	CreateDoctor(ctx context.Context, doctor *Doctor, specializationIDs []uint) error
	UpdateDoctor(ctx context.Context, doctor *Doctor, specializationIDs []uint) error
	DeleteDoctor(ctx context.Context, id uint) error
	DoctorReviews(ctx context.Context, doctorID uint, approvedOnly bool) ([]Review, error)

	ListSpecializations(ctx context.Context) ([]Specialization, error)
	CountSpecializations(ctx context.Context, ids []uint) (int64, error)

	SearchServices(ctx context.Context, query string) ([]Service, error)
	GetService(ctx context.Context, id uint) (*Service, error)
	ServicesByIDs(ctx context.Context, ids []uint, query string) ([]Service, error)
	AllServices(ctx context.Context) ([]Service, error)
	DeleteService(ctx context.Context, id uint) error

	ActivePromotions(ctx context.Context, today Date, limit int) ([]Promotion, error)
	FeaturedDoctors(ctx context.Context, limit int) ([]Doctor, error)
	TopRatedDoctors(ctx context.Context, limit int, includeUnapproved bool) ([]DoctorRating, error)
	RecentApprovedReviews(ctx context.Context, limit int) ([]Review, error)

	AppointmentsOn(ctx context.Context, date Date, status string) ([]Appointment, error)
	LogNotification(ctx context.Context, entry *NotificationLog) error

	DB() *gorm.DB
	Close() error
}

// DoctorRating is a doctor annotated with the mean of its review ratings.
type DoctorRating struct {
	Doctor
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
}

type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

// Open connects to the database selected by driver. For SQLite the pool is
// pinned to one connection so ":memory:" databases survive between queries.
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if !debug {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	return db, nil
}

// Migrate registers the explicit join tables and creates or updates every
// table of both domains.
func Migrate(db *gorm.DB) error {
	joins := []struct {
		model interface{}
		field string
		join  interface{}
	}{
		{&Doctor{}, "Specializations", &DoctorSpecialization{}},
		{&Service{}, "Doctors", &ServiceDoctor{}},
		{&Tour{}, "Halls", &TourHall{}},
	}
	for _, j := range joins {
		if err := db.SetupJoinTable(j.model, j.field, j.join); err != nil {
			return fmt.Errorf("failed to set up join table for %s: %w", j.field, err)
		}
	}

	if err := db.AutoMigrate(
		&Specialization{},
		&Doctor{},
		&Service{},
		&Promotion{},
		&Appointment{},
		&Review{},
		&NotificationLog{},
		&Hall{},
		&Exhibit{},
		&Guide{},
		&Tour{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// NewGormRepository opens, migrates and wraps a database in one step.
func NewGormRepository(driver, dsn string, debug bool) (*GormRepository, error) {
	db, err := Open(driver, dsn, debug)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return NewRepository(db), nil
}

func (r *GormRepository) DB() *gorm.DB {
	return r.db
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ContainsPattern builds a lowercased LIKE pattern matching s as a literal
// substring. Use it with `Lower(db, col) LIKE ? ESCAPE '\'`.
func ContainsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
