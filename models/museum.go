package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Museum tour entities. They share the admin site with the clinic but no
// data or logic.

type Hall struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:150;not null;uniqueIndex" json:"name" binding:"required,max=150"`
	Floor       int    `gorm:"not null" json:"floor"`
	Description string `gorm:"type:text" json:"description"`
}

type Exhibit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title" binding:"required,max=200"`
	Description string    `gorm:"type:text" json:"description"`
	Period      string    `gorm:"size:100" json:"period" binding:"max=100"`
	Image       string    `gorm:"size:255" json:"image"`
	IsOnDisplay bool      `gorm:"not null;index" json:"is_on_display"`
	HallID      *uint     `gorm:"index" json:"hall_id"`
	Hall        *Hall     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"hall,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Guide struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:100;not null" json:"first_name" binding:"required,max=100"`
	LastName  string `gorm:"size:100;not null" json:"last_name" binding:"required,max=100"`
	Languages string `gorm:"size:200" json:"languages" binding:"max=200"`
	Bio       string `gorm:"type:text" json:"bio"`
	Photo     string `gorm:"size:255" json:"photo"`
	IsActive  bool   `gorm:"not null;index" json:"is_active"`
}

type Tour struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Title           string          `gorm:"size:200;not null" json:"title" binding:"required,max=200"`
	Description     string          `gorm:"type:text" json:"description"`
	GuideID         *uint           `gorm:"index" json:"guide_id"`
	Guide           *Guide          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"guide,omitempty"`
	Halls           []Hall          `gorm:"many2many:tour_halls;constraint:OnDelete:CASCADE" json:"halls,omitempty"`
	StartsAt        time.Time       `gorm:"not null;index" json:"starts_at"`
	DurationMinutes int             `gorm:"not null" json:"duration_minutes" binding:"min=0"`
	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	MaxVisitors     int             `gorm:"not null" json:"max_visitors" binding:"min=0"`
}

// TourHall is the explicit join row of Tour.Halls.
type TourHall struct {
	TourID uint `gorm:"primaryKey" json:"tour_id"`
	HallID uint `gorm:"primaryKey" json:"hall_id"`
}

func NewGuide() *Guide {
	return &Guide{IsActive: true}
}

func NewTour() *Tour {
	return &Tour{DurationMinutes: 60, MaxVisitors: 20, Price: decimal.Zero}
}

func (h *Hall) PrimaryKey() uint { return h.ID }
func (h *Hall) String() string   { return h.Name }

func (h *Hall) BeforeDelete(tx *gorm.DB) error {
	if h.ID == 0 {
		return nil
	}
	if err := tx.Model(&Exhibit{}).Where("hall_id = ?", h.ID).UpdateColumn("hall_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach exhibits: %w", err)
	}
	return tx.Where("hall_id = ?", h.ID).Delete(&TourHall{}).Error
}

func (e *Exhibit) PrimaryKey() uint { return e.ID }
func (e *Exhibit) String() string   { return e.Title }

func (g *Guide) PrimaryKey() uint { return g.ID }
func (g *Guide) String() string   { return fmt.Sprintf("%s %s", g.FirstName, g.LastName) }

func (g *Guide) BeforeDelete(tx *gorm.DB) error {
	if g.ID == 0 {
		return nil
	}
	return tx.Model(&Tour{}).Where("guide_id = ?", g.ID).UpdateColumn("guide_id", nil).Error
}

func (t *Tour) PrimaryKey() uint { return t.ID }
func (t *Tour) String() string   { return t.Title }

func (t *Tour) BeforeSave(tx *gorm.DB) error {
	if t.StartsAt.IsZero() {
		return invalid("starts_at", "this field is required")
	}
	if t.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}

func (t *Tour) BeforeDelete(tx *gorm.DB) error {
	if t.ID == 0 {
		return nil
	}
	return tx.Where("tour_id = ?", t.ID).Delete(&TourHall{}).Error
}
