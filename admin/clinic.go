package admin

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"vetclinic/models"
	"vetclinic/utils"
)

// RegisterClinic adds the clinic models to site.
func RegisterClinic(site *Site, media *utils.MediaStore) error {
	statuses := make([]interface{}, 0, len(models.AppointmentStatuses))
	for _, s := range models.AppointmentStatuses {
		statuses = append(statuses, s)
	}

	regs := []func() error{
		func() error {
			return Register[models.Specialization](site, ModelAdmin[models.Specialization]{
				App:              "clinic",
				ListDisplay:      []string{"id", "name"},
				ListDisplayLinks: []string{"id", "name"},
				SearchFields:     []string{"name"},
				Ordering:         []string{"name"},
			})
		},
		func() error {
			return Register[models.Doctor](site, ModelAdmin[models.Doctor]{
				App:              "clinic",
				ListDisplay:      []string{"photo_preview", "full_name", "experience_display", "is_featured", "specializations_list"},
				ListDisplayLinks: []string{"full_name"},
				ListFilter:       []string{"is_featured", "specializations"},
				ListEditable:     []string{"is_featured"},
				SearchFields:     []string{"first_name", "last_name"},
				Preload:          []string{"Specializations"},
				Columns: map[string]Column[models.Doctor]{
					"photo_preview": func(d *models.Doctor) interface{} {
						if d.Photo == "" {
							return nil
						}
						return media.URL(d.Photo)
					},
					"full_name": func(d *models.Doctor) interface{} { return d.FullName() },
					"experience_display": func(d *models.Doctor) interface{} {
						return fmt.Sprintf("%d yr.", d.Experience)
					},
					"specializations_list": func(d *models.Doctor) interface{} {
						names := make([]string, 0, len(d.Specializations))
						for _, s := range d.Specializations {
							names = append(names, s.Name)
						}
						return strings.Join(names, ", ")
					},
				},
				Inlines: []Inline{ManyToMany[models.Specialization]("Specializations", "specializations")},
			})
		},
		func() error {
			return Register[models.Service](site, ModelAdmin[models.Service]{
				App:              "clinic",
				ListDisplay:      []string{"name", "price", "is_active", "doctors_count"},
				ListDisplayLinks: []string{"name"},
				ListFilter:       []string{"is_active"},
				ListEditable:     []string{"price", "is_active"},
				SearchFields:     []string{"name", "description"},
				Preload:          []string{"Doctors"},
				Columns: map[string]Column[models.Service]{
					"doctors_count": func(s *models.Service) interface{} { return len(s.Doctors) },
				},
				Inlines: []Inline{ManyToMany[models.Doctor]("Doctors", "doctors")},
				New:     models.NewService,
			})
		},
		func() error {
			return Register[models.Promotion](site, ModelAdmin[models.Promotion]{
				App:              "clinic",
				ListDisplay:      []string{"title", "start_date", "end_date", "is_active"},
				ListDisplayLinks: []string{"title"},
				ListFilter:       []string{"start_date", "end_date"},
				SearchFields:     []string{"title", "text"},
				DateHierarchy:    "start_date",
				Columns: map[string]Column[models.Promotion]{
					"is_active": func(p *models.Promotion) interface{} {
						return p.IsActive(models.DateOf(site.today()))
					},
				},
			})
		},
		func() error {
			return Register[models.Appointment](site, ModelAdmin[models.Appointment]{
				App:              "clinic",
				ListDisplay:      []string{"client_name", "phone", "pet_name", "service", "desired_date", "status", "created_at"},
				ListDisplayLinks: []string{"client_name"},
				ListFilter:       []string{"status", "service", "created_at", "desired_date"},
				ListEditable:     []string{"status"},
				SearchFields:     []string{"client_name", "phone", "pet_name", "service__name"},
				ReadonlyFields:   []string{"created_at"},
				DateHierarchy:    "created_at",
				Choices:          map[string][]interface{}{"status": statuses},
				Clean: func(a *models.Appointment) Errors {
					errs := Errors{}
					if a.Phone != "" && !utils.ValidatePhone(a.Phone) {
						errs.Add("phone", "Enter a valid phone number.")
					}
					return errs
				},
			})
		},
		func() error {
			return Register[models.Review](site, ModelAdmin[models.Review]{
				App:              "clinic",
				ListDisplay:      []string{"author_name", "doctor", "rating", "is_approved", "short_text", "created_at"},
				ListDisplayLinks: []string{"author_name"},
				ListFilter:       []string{"rating", "is_approved", "created_at", "doctor"},
				ListEditable:     []string{"is_approved"},
				SearchFields:     []string{"author_name", "text", "doctor__first_name", "doctor__last_name"},
				ReadonlyFields:   []string{"created_at"},
				Columns: map[string]Column[models.Review]{
					"short_text": func(r *models.Review) interface{} { return ShortText(r.Text, 50) },
				},
				Actions: []Action{approveReviews},
			})
		},
		func() error {
			return Register[models.NotificationLog](site, ModelAdmin[models.NotificationLog]{
				App:               "clinic",
				Name:              "notificationlog",
				VerboseName:       "notification log",
				VerboseNamePlural: "notification logs",
				ListDisplay:       []string{"appointment", "channel", "status", "sent_at"},
				ListFilter:        []string{"channel", "status", "sent_at"},
				SearchFields:      []string{"message", "error"},
				Ordering:          []string{"-sent_at"},
				DateHierarchy:     "sent_at",
				ReadonlyFields:    []string{"appointment_id", "channel", "status", "message", "error", "sent_at"},
			})
		},
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

// ShortText cuts text to limit characters and marks the cut with "...".
func ShortText(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

var approveReviews = Action{
	Name:        "approve_reviews",
	Description: "Approve selected reviews",
	Run: func(ctx context.Context, tx *gorm.DB, ids []uint) (string, error) {
		res := tx.Model(&models.Review{}).Where("id IN ?", ids).UpdateColumn("is_approved", true)
		if res.Error != nil {
			return "", fmt.Errorf("failed to approve reviews: %w", res.Error)
		}
		return fmt.Sprintf("%d review(s) approved.", res.RowsAffected), nil
	},
}
