package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusNew       = "new"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// AppointmentStatuses lists the accepted values of Appointment.Status in
// display order.
var AppointmentStatuses = []string{StatusNew, StatusConfirmed, StatusCanceled}

func ValidStatus(s string) bool {
	for _, v := range AppointmentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Specialization struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name" binding:"required,max=100"`
}

type Doctor struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	FirstName       string           `gorm:"size:100;not null" json:"first_name" binding:"required,max=100"`
	LastName        string           `gorm:"size:100;not null" json:"last_name" binding:"required,max=100"`
	Specializations []Specialization `gorm:"many2many:doctor_specializations;constraint:OnDelete:CASCADE" json:"specializations,omitempty"`
	Experience      uint             `gorm:"not null" json:"experience"`
	Description     string           `gorm:"type:text" json:"description"`
	Photo           string           `gorm:"size:255" json:"photo"`
	IsFeatured      bool             `gorm:"not null;index" json:"is_featured"`
}

// DoctorSpecialization is the explicit join row of Doctor.Specializations.
type DoctorSpecialization struct {
	DoctorID         uint `gorm:"primaryKey" json:"doctor_id"`
	SpecializationID uint `gorm:"primaryKey" json:"specialization_id"`
}

type Service struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:200;not null" json:"name" binding:"required,max=200"`
	Description string          `gorm:"type:text;not null" json:"description" binding:"required"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Image       string          `gorm:"size:255" json:"image"`
	IsActive    bool            `gorm:"not null;index" json:"is_active"`
	Doctors     []Doctor        `gorm:"many2many:service_doctors;constraint:OnDelete:CASCADE" json:"doctors,omitempty"`
}

// ServiceDoctor is the explicit join row of Service.Doctors.
type ServiceDoctor struct {
	ServiceID uint `gorm:"primaryKey" json:"service_id"`
	DoctorID  uint `gorm:"primaryKey" json:"doctor_id"`
}

type Promotion struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"size:200;not null" json:"title" binding:"required,max=200"`
	Text      string `gorm:"type:text;not null" json:"text" binding:"required"`
	StartDate Date   `gorm:"not null;index" json:"start_date"`
	EndDate   Date   `gorm:"not null;index" json:"end_date"`
	Image     string `gorm:"size:255" json:"image"`
}

type Appointment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClientName  string    `gorm:"size:100;not null" json:"client_name" binding:"required,max=100"`
	Phone       string    `gorm:"size:20;not null" json:"phone" binding:"required,max=20"`
	Email       string    `gorm:"size:254" json:"email" binding:"omitempty,email"`
	PetName     string    `gorm:"size:100;not null" json:"pet_name" binding:"required,max=100"`
	ServiceID   uint      `gorm:"not null;index" json:"service_id" binding:"required"`
	Service     *Service  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"service,omitempty"`
	DesiredDate Date      `gorm:"not null;index" json:"desired_date"`
	Message     string    `gorm:"type:text" json:"message"`
	Status      string    `gorm:"size:20;not null;index;check:chk_appointments_status,status IN ('new','confirmed','canceled')" json:"status" binding:"omitempty,oneof=new confirmed canceled"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorName string    `gorm:"size:100;not null" json:"author_name" binding:"required,max=100"`
	Text       string    `gorm:"type:text;not null" json:"text" binding:"required"`
	Rating     int       `gorm:"not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5" json:"rating" binding:"required,min=1,max=5"`
	IsApproved bool      `gorm:"not null;index" json:"is_approved"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	DoctorID   *uint     `gorm:"index" json:"doctor_id"`
	Doctor     *Doctor   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"doctor,omitempty"`
}

// NotificationLog records every reminder sent (or attempted) for an
// appointment.
type NotificationLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	AppointmentID uint         `gorm:"not null;index" json:"appointment_id"`
	Appointment   *Appointment `gorm:"constraint:OnDelete:CASCADE" json:"appointment,omitempty"`
	Channel       string       `gorm:"size:20;not null" json:"channel"`
	Status        string       `gorm:"size:20;not null" json:"status"`
	Message       string       `gorm:"type:text" json:"message"`
	Error         string       `gorm:"type:text" json:"error"`
	SentAt        time.Time    `gorm:"not null" json:"sent_at"`
}

func NewService() *Service {
	return &Service{IsActive: true, Price: decimal.Zero}
}

func (s *Specialization) PrimaryKey() uint { return s.ID }
func (s *Specialization) String() string   { return s.Name }

func (d *Doctor) PrimaryKey() uint { return d.ID }
func (d *Doctor) String() string   { return d.FullName() }

func (d *Doctor) FullName() string {
	return fmt.Sprintf("%s %s", d.FirstName, d.LastName)
}

func (d *Doctor) SpecializationIDs() []uint {
	ids := make([]uint, 0, len(d.Specializations))
	for _, s := range d.Specializations {
		ids = append(ids, s.ID)
	}
	return ids
}

// BeforeDelete keeps reviews of a removed doctor and drops its join rows.
func (d *Doctor) BeforeDelete(tx *gorm.DB) error {
	if d.ID == 0 {
		return nil
	}
	if err := tx.Model(&Review{}).Where("doctor_id = ?", d.ID).UpdateColumn("doctor_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach reviews: %w", err)
	}
	if err := tx.Where("doctor_id = ?", d.ID).Delete(&DoctorSpecialization{}).Error; err != nil {
		return fmt.Errorf("failed to drop specializations: %w", err)
	}
	if err := tx.Where("doctor_id = ?", d.ID).Delete(&ServiceDoctor{}).Error; err != nil {
		return fmt.Errorf("failed to drop services: %w", err)
	}
	return nil
}

func (s *Specialization) BeforeDelete(tx *gorm.DB) error {
	if s.ID == 0 {
		return nil
	}
	return tx.Where("specialization_id = ?", s.ID).Delete(&DoctorSpecialization{}).Error
}

func (s *Service) PrimaryKey() uint { return s.ID }
func (s *Service) String() string   { return s.Name }

func (s *Service) BeforeSave(tx *gorm.DB) error {
	if s.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}

// BeforeDelete removes the service's appointments along with it.
func (s *Service) BeforeDelete(tx *gorm.DB) error {
	if s.ID == 0 {
		return nil
	}
	var appointmentIDs []uint
	if err := tx.Model(&Appointment{}).Where("service_id = ?", s.ID).Pluck("id", &appointmentIDs).Error; err != nil {
		return fmt.Errorf("failed to list appointments: %w", err)
	}
	if len(appointmentIDs) > 0 {
		if err := tx.Where("appointment_id IN ?", appointmentIDs).Delete(&NotificationLog{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}
		if err := tx.Where("id IN ?", appointmentIDs).Delete(&Appointment{}).Error; err != nil {
			return fmt.Errorf("failed to delete appointments: %w", err)
		}
	}
	if err := tx.Where("service_id = ?", s.ID).Delete(&ServiceDoctor{}).Error; err != nil {
		return fmt.Errorf("failed to drop doctors: %w", err)
	}
	return nil
}

func (p *Promotion) PrimaryKey() uint { return p.ID }
func (p *Promotion) String() string   { return p.Title }

// IsActive reports whether today falls within the promotion's dates,
// both ends included.
func (p *Promotion) IsActive(today Date) bool {
	return !today.Before(p.StartDate) && !today.After(p.EndDate)
}

func (p *Promotion) BeforeSave(tx *gorm.DB) error {
	if p.StartDate.IsZero() {
		return invalid("start_date", "this field is required")
	}
	if p.EndDate.IsZero() {
		return invalid("end_date", "this field is required")
	}
	if p.EndDate.Before(p.StartDate) {
		return invalid("end_date", "must not be earlier than start_date")
	}
	return nil
}

func (a *Appointment) PrimaryKey() uint { return a.ID }

func (a *Appointment) String() string {
	if a.Service != nil {
		return fmt.Sprintf("Appointment from %s (%s)", a.ClientName, a.Service.Name)
	}
	return fmt.Sprintf("Appointment from %s", a.ClientName)
}

func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = StatusNew
	}
	if !ValidStatus(a.Status) {
		return invalid("status", fmt.Sprintf("%q is not one of %v", a.Status, AppointmentStatuses))
	}
	if a.DesiredDate.IsZero() {
		return invalid("desired_date", "this field is required")
	}
	return nil
}

func (a *Appointment) BeforeDelete(tx *gorm.DB) error {
	if a.ID == 0 {
		return nil
	}
	return tx.Where("appointment_id = ?", a.ID).Delete(&NotificationLog{}).Error
}

func (r *Review) PrimaryKey() uint { return r.ID }

func (r *Review) String() string {
	return fmt.Sprintf("Review from %s (%d/5)", r.AuthorName, r.Rating)
}

func (r *Review) BeforeSave(tx *gorm.DB) error {
	if r.Rating < 1 || r.Rating > 5 {
		return invalid("rating", "must be between 1 and 5")
	}
	return nil
}

func (n *NotificationLog) PrimaryKey() uint { return n.ID }

func (n *NotificationLog) String() string {
	return fmt.Sprintf("%s %s for appointment #%d", n.Channel, n.Status, n.AppointmentID)
}
