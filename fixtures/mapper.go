package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vetclinic/models"
)

// Counts reports how many rows Apply created per table. Rows that already
// existed are not counted.
type Counts map[string]int

// Apply writes the fixtures in one transaction. Rows are matched by their
// natural key, so applying the same file twice changes nothing.
func Apply(ctx context.Context, db *gorm.DB, f YAMLFixtures) (Counts, error) {
	counts := Counts{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := &seeder{tx: tx, counts: counts,
			specializations: map[string]models.Specialization{},
			doctors:         map[string]models.Doctor{},
			halls:           map[string]models.Hall{},
			guides:          map[string]models.Guide{},
		}
		steps := []func(YAMLFixtures) error{
			s.specializationsStep,
			s.doctorsStep,
			s.servicesStep,
			s.promotionsStep,
			s.reviewsStep,
			s.hallsStep,
			s.exhibitsStep,
			s.guidesStep,
			s.toursStep,
		}
		for _, step := range steps {
			if err := step(f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

type seeder struct {
	tx     *gorm.DB
	counts Counts

	specializations map[string]models.Specialization
	doctors         map[string]models.Doctor
	halls           map[string]models.Hall
	guides          map[string]models.Guide
}

// firstOrCreate looks obj up by where and inserts it when missing.
func (s *seeder) firstOrCreate(table string, obj interface{}, where map[string]interface{}) error {
	err := s.tx.Where(where).First(obj).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", table, where, err)
	}
	if err := s.tx.Create(obj).Error; err != nil {
		return fmt.Errorf("%s %v: %w", table, where, err)
	}
	s.counts[table]++
	return nil
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func (s *seeder) specializationsStep(f YAMLFixtures) error {
	for _, y := range f.Specializations {
		spec := models.Specialization{Name: y.Name}
		if err := s.firstOrCreate("specializations", &spec, map[string]interface{}{"name": y.Name}); err != nil {
			return err
		}
		s.specializations[spec.Name] = spec
	}
	return nil
}

func (s *seeder) specialization(name string) (models.Specialization, error) {
	if spec, ok := s.specializations[name]; ok {
		return spec, nil
	}
	var spec models.Specialization
	if err := s.tx.Where("name = ?", name).First(&spec).Error; err != nil {
		return spec, fmt.Errorf("unknown specialization %q", name)
	}
	s.specializations[name] = spec
	return spec, nil
}

func (s *seeder) doctorsStep(f YAMLFixtures) error {
	for i, y := range f.Doctors {
		doctor := models.Doctor{
			FirstName:   y.FirstName,
			LastName:    y.LastName,
			Experience:  y.Experience,
			Description: y.Description,
			IsFeatured:  y.IsFeatured,
		}
		where := map[string]interface{}{"first_name": y.FirstName, "last_name": y.LastName}
		if err := s.firstOrCreate("doctors", &doctor, where); err != nil {
			return err
		}

		specs := make([]models.Specialization, 0, len(y.Specializations))
		for _, name := range y.Specializations {
			spec, err := s.specialization(name)
			if err != nil {
				return fmt.Errorf("doctors[%d]: %w", i, err)
			}
			specs = append(specs, spec)
		}
		if len(specs) > 0 {
			if err := s.tx.Model(&doctor).Association("Specializations").Append(specs); err != nil {
				return fmt.Errorf("doctors[%d]: %w", i, err)
			}
		}
		s.doctors[doctor.FullName()] = doctor
	}
	return nil
}

func (s *seeder) doctor(name string) (models.Doctor, error) {
	if d, ok := s.doctors[name]; ok {
		return d, nil
	}
	first, last, _ := strings.Cut(name, " ")
	var d models.Doctor
	if err := s.tx.Where("first_name = ? AND last_name = ?", first, last).First(&d).Error; err != nil {
		return d, fmt.Errorf("unknown doctor %q", name)
	}
	s.doctors[name] = d
	return d, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (s *seeder) servicesStep(f YAMLFixtures) error {
	for i, y := range f.Services {
		price, err := parsePrice(y.Price)
		if err != nil {
			return fmt.Errorf("services[%d].price: %w", i, err)
		}
		service := models.NewService()
		service.Name = y.Name
		service.Description = y.Description
		service.Price = price
		if y.IsActive != nil {
			service.IsActive = *y.IsActive
		}
		if err := s.firstOrCreate("services", service, map[string]interface{}{"name": y.Name}); err != nil {
			return err
		}

		doctors := make([]models.Doctor, 0, len(y.Doctors))
		for _, name := range y.Doctors {
			d, err := s.doctor(name)
			if err != nil {
				return fmt.Errorf("services[%d]: %w", i, err)
			}
			doctors = append(doctors, d)
		}
		if len(doctors) > 0 {
			if err := s.tx.Model(service).Association("Doctors").Append(doctors); err != nil {
				return fmt.Errorf("services[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func (s *seeder) promotionsStep(f YAMLFixtures) error {
	for i, y := range f.Promotions {
		start, err := models.ParseDate(y.StartDate)
		if err != nil {
			return fmt.Errorf("promotions[%d].start_date: %w", i, err)
		}
		end, err := models.ParseDate(y.EndDate)
		if err != nil {
			return fmt.Errorf("promotions[%d].end_date: %w", i, err)
		}
		promo := models.Promotion{Title: y.Title, Text: y.Text, StartDate: start, EndDate: end}
		if err := s.firstOrCreate("promotions", &promo, map[string]interface{}{"title": y.Title}); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) reviewsStep(f YAMLFixtures) error {
	for i, y := range f.Reviews {
		review := models.Review{AuthorName: y.AuthorName, Text: y.Text, Rating: y.Rating, IsApproved: y.IsApproved}
		if y.Doctor != "" {
			d, err := s.doctor(y.Doctor)
			if err != nil {
				return fmt.Errorf("reviews[%d]: %w", i, err)
			}
			review.DoctorID = &d.ID
		}
		where := map[string]interface{}{"author_name": y.AuthorName, "text": y.Text}
		if err := s.firstOrCreate("reviews", &review, where); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) hallsStep(f YAMLFixtures) error {
	for _, y := range f.Halls {
		hall := models.Hall{Name: y.Name, Floor: y.Floor, Description: y.Description}
		if err := s.firstOrCreate("halls", &hall, map[string]interface{}{"name": y.Name}); err != nil {
			return err
		}
		s.halls[hall.Name] = hall
	}
	return nil
}

func (s *seeder) hall(name string) (models.Hall, error) {
	if h, ok := s.halls[name]; ok {
		return h, nil
	}
	var h models.Hall
	if err := s.tx.Where("name = ?", name).First(&h).Error; err != nil {
		return h, fmt.Errorf("unknown hall %q", name)
	}
	s.halls[name] = h
	return h, nil
}

func (s *seeder) exhibitsStep(f YAMLFixtures) error {
	for i, y := range f.Exhibits {
		exhibit := models.Exhibit{Title: y.Title, Description: y.Description, Period: y.Period, IsOnDisplay: y.IsOnDisplay}
		if y.Hall != "" {
			h, err := s.hall(y.Hall)
			if err != nil {
				return fmt.Errorf("exhibits[%d]: %w", i, err)
			}
			exhibit.HallID = &h.ID
		}
		if err := s.firstOrCreate("exhibits", &exhibit, map[string]interface{}{"title": y.Title}); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) guidesStep(f YAMLFixtures) error {
	for _, y := range f.Guides {
		guide := models.NewGuide()
		guide.FirstName, guide.LastName = y.FirstName, y.LastName
		guide.Languages, guide.Bio = y.Languages, y.Bio
		where := map[string]interface{}{"first_name": y.FirstName, "last_name": y.LastName}
		if err := s.firstOrCreate("guides", guide, where); err != nil {
			return err
		}
		s.guides[fullName(guide.FirstName, guide.LastName)] = *guide
	}
	return nil
}

func (s *seeder) guide(name string) (models.Guide, error) {
	if g, ok := s.guides[name]; ok {
		return g, nil
	}
	first, last, _ := strings.Cut(name, " ")
	var g models.Guide
	if err := s.tx.Where("first_name = ? AND last_name = ?", first, last).First(&g).Error; err != nil {
		return g, fmt.Errorf("unknown guide %q", name)
	}
	s.guides[name] = g
	return g, nil
}

func (s *seeder) toursStep(f YAMLFixtures) error {
	for i, y := range f.Tours {
		startsAt, err := time.Parse(time.RFC3339, y.StartsAt)
		if err != nil {
			return fmt.Errorf("tours[%d].starts_at: %w", i, err)
		}
		price, err := parsePrice(y.Price)
		if err != nil {
			return fmt.Errorf("tours[%d].price: %w", i, err)
		}
		tour := models.NewTour()
		tour.Title, tour.Description = y.Title, y.Description
		tour.StartsAt, tour.Price = startsAt, price
		if y.DurationMinutes > 0 {
			tour.DurationMinutes = y.DurationMinutes
		}
		if y.MaxVisitors > 0 {
			tour.MaxVisitors = y.MaxVisitors
		}
		if y.Guide != "" {
			g, err := s.guide(y.Guide)
			if err != nil {
				return fmt.Errorf("tours[%d]: %w", i, err)
			}
			tour.GuideID = &g.ID
		}
		if err := s.firstOrCreate("tours", tour, map[string]interface{}{"title": y.Title}); err != nil {
			return err
		}

		halls := make([]models.Hall, 0, len(y.Halls))
		for _, name := range y.Halls {
			h, err := s.hall(name)
			if err != nil {
				return fmt.Errorf("tours[%d]: %w", i, err)
			}
			halls = append(halls, h)
		}
		if len(halls) > 0 {
			if err := s.tx.Model(tour).Association("Halls").Append(halls); err != nil {
				return fmt.Errorf("tours[%d]: %w", i, err)
			}
		}
	}
	return nil
}
