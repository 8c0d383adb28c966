package admin

import (
	"fmt"
	"strings"

	"vetclinic/models"
)

// RegisterMuseum adds the museum tour models to site.
func RegisterMuseum(site *Site) error {
	if err := Register[models.Hall](site, ModelAdmin[models.Hall]{
		App:          "museum",
		ListDisplay:  []string{"name", "floor"},
		ListFilter:   []string{"floor"},
		SearchFields: []string{"name", "description"},
		Ordering:     []string{"floor", "name"},
	}); err != nil {
		return err
	}

	if err := Register[models.Exhibit](site, ModelAdmin[models.Exhibit]{
		App:            "museum",
		ListDisplay:    []string{"title", "period", "hall", "is_on_display"},
		ListFilter:     []string{"is_on_display", "hall"},
		ListEditable:   []string{"is_on_display"},
		SearchFields:   []string{"title", "period", "hall__name"},
		ReadonlyFields: []string{"created_at"},
		DateHierarchy:  "created_at",
	}); err != nil {
		return err
	}

	if err := Register[models.Guide](site, ModelAdmin[models.Guide]{
		App:          "museum",
		ListDisplay:  []string{"__str__", "languages", "is_active"},
		ListFilter:   []string{"is_active"},
		ListEditable: []string{"is_active"},
		SearchFields: []string{"first_name", "last_name", "languages"},
		Ordering:     []string{"last_name", "first_name"},
		New:          models.NewGuide,
	}); err != nil {
		return err
	}

	return Register[models.Tour](site, ModelAdmin[models.Tour]{
		App:           "museum",
		ListDisplay:   []string{"title", "guide", "starts_at", "duration", "price", "halls_list"},
		ListFilter:    []string{"guide", "halls", "starts_at"},
		SearchFields:  []string{"title", "description", "guide__last_name"},
		Ordering:      []string{"starts_at"},
		DateHierarchy: "starts_at",
		Preload:       []string{"Halls"},
		Columns: map[string]Column[models.Tour]{
			"duration": func(t *models.Tour) interface{} {
				return fmt.Sprintf("%d min", t.DurationMinutes)
			},
			"halls_list": func(t *models.Tour) interface{} {
				names := make([]string, 0, len(t.Halls))
				for _, h := range t.Halls {
					names = append(names, h.Name)
				}
				return strings.Join(names, ", ")
			},
		},
		Inlines: []Inline{ManyToMany[models.Hall]("Halls", "halls")},
		New:     models.NewTour,
	})
}
