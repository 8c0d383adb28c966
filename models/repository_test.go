package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	repo, err := NewGormRepository(DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreate(t *testing.T, repo *GormRepository, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		if err := repo.DB().Create(v).Error; err != nil {
			t.Fatalf("Failed to create %T: %v", v, err)
		}
	}
}

func TestSearchServices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo,
		&Service{Name: "Vaccination", Description: "Yearly shots for dogs and cats", Price: decimal.NewFromInt(1500), IsActive: true},
		&Service{Name: "Dental cleaning", Description: "Ultrasonic scaling", Price: decimal.NewFromInt(3000), IsActive: true},
		&Service{Name: "X-Ray", Description: "Digital radiography 100%", Price: decimal.NewFromInt(2500), IsActive: true},
		&Service{Name: "Grooming", Description: "Full coat care for dogs", Price: decimal.NewFromInt(900), IsActive: false},
		&Service{Name: "Вакцинация", Description: "Прививки для собак", Price: decimal.NewFromInt(1200), IsActive: true},
		&Service{Name: "Éclair bath", Description: "Pâtisserie-scented shampoo", Price: decimal.NewFromInt(700), IsActive: true},
	)

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"Dental cleaning", "Vaccination", "X-Ray", "Éclair bath", "Вакцинация"}},
		{"DOGS", []string{"Vaccination"}},
		{"clean", []string{"Dental cleaning"}},
		{"ray", []string{"X-Ray"}},
		{"%", []string{"X-Ray"}},
		{"_", nil},
		{"grooming", nil},
		{"nothing matches", nil},
		{"Вакцинация", []string{"Вакцинация"}},
		{"вакцинация", []string{"Вакцинация"}},
		{"ПРИВИВКИ", []string{"Вакцинация"}},
		{"Éclair", []string{"Éclair bath"}},
		{"éCLAIR", []string{"Éclair bath"}},
		{"PÂTISSERIE", []string{"Éclair bath"}},
	}
	for _, c := range cases {
		services, err := repo.SearchServices(ctx, c.query)
		if err != nil {
			t.Fatalf("SearchServices(%q) failed: %v", c.query, err)
		}
		if len(services) != len(c.want) {
			t.Errorf("SearchServices(%q) returned %d services, want %d", c.query, len(services), len(c.want))
			continue
		}
		for i, s := range services {
			if s.Name != c.want[i] {
				t.Errorf("SearchServices(%q)[%d] = %q, want %q", c.query, i, s.Name, c.want[i])
			}
		}
	}
}

func TestActivePromotions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	today := NewDate(2026, time.October, 19)

	mustCreate(t, repo,
		&Promotion{Title: "starts today", Text: "t", StartDate: today, EndDate: today.AddDays(10)},
		&Promotion{Title: "ends today", Text: "t", StartDate: today.AddDays(-10), EndDate: today},
		&Promotion{Title: "expired", Text: "t", StartDate: today.AddDays(-10), EndDate: today.AddDays(-1)},
		&Promotion{Title: "future", Text: "t", StartDate: today.AddDays(1), EndDate: today.AddDays(5)},
	)

	promos, err := repo.ActivePromotions(ctx, today, 0)
	if err != nil {
		t.Fatalf("ActivePromotions failed: %v", err)
	}
	if len(promos) != 2 {
		t.Fatalf("Expected 2 active promotions, got %d", len(promos))
	}
	if promos[0].Title != "starts today" || promos[1].Title != "ends today" {
		t.Errorf("Unexpected order: %q, %q", promos[0].Title, promos[1].Title)
	}
	for _, p := range promos {
		if !p.IsActive(today) {
			t.Errorf("Promotion %q returned but IsActive is false", p.Title)
		}
	}
}

func TestTopRatedDoctors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := &Doctor{FirstName: "Anna", LastName: "Ivanova", Experience: 10}
	b := &Doctor{FirstName: "Boris", LastName: "Petrov", Experience: 5}
	c := &Doctor{FirstName: "Clara", LastName: "Smirnova", Experience: 3}
	d := &Doctor{FirstName: "Dmitri", LastName: "Sokolov", Experience: 1}
	e := &Doctor{FirstName: "Elena", LastName: "Unrated", Experience: 7}
	mustCreate(t, repo, a, b, c, d, e)

	review := func(doc *Doctor, rating int, approved bool) *Review {
		return &Review{AuthorName: "client", Text: "text", Rating: rating, IsApproved: approved, DoctorID: &doc.ID}
	}
	mustCreate(t, repo,
		review(a, 4, true), review(a, 5, true), // 4.5
		review(b, 5, true),                      // 5
		review(c, 3, true), review(c, 1, false), // 3 approved, 2 overall
		review(d, 5, false), // only unapproved
	)

	ratings, err := repo.TopRatedDoctors(ctx, 3, false)
	if err != nil {
		t.Fatalf("TopRatedDoctors failed: %v", err)
	}
	want := []uint{b.ID, a.ID, c.ID}
	if len(ratings) != len(want) {
		t.Fatalf("Expected %d ranked doctors, got %d", len(want), len(ratings))
	}
	for i, r := range ratings {
		if r.ID != want[i] {
			t.Errorf("rank %d: got doctor %d, want %d", i, r.ID, want[i])
		}
	}
	if ratings[1].AvgRating != 4.5 || ratings[1].ReviewCount != 2 {
		t.Errorf("Unexpected rating for Anna: %v over %d", ratings[1].AvgRating, ratings[1].ReviewCount)
	}

	all, err := repo.TopRatedDoctors(ctx, 3, true)
	if err != nil {
		t.Fatalf("TopRatedDoctors(all) failed: %v", err)
	}
	want = []uint{b.ID, d.ID, a.ID}
	for i, r := range all {
		if r.ID != want[i] {
			t.Errorf("all reviews rank %d: got doctor %d, want %d", i, r.ID, want[i])
		}
	}
	for _, r := range all {
		if r.ID == e.ID {
			t.Errorf("Doctor without reviews must not be ranked")
		}
	}
}

func TestRecentApprovedReviews(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		mustCreate(t, repo, &Review{
			AuthorName: "client",
			Text:       "text",
			Rating:     5,
			IsApproved: i != 6,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	reviews, err := repo.RecentApprovedReviews(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentApprovedReviews failed: %v", err)
	}
	if len(reviews) != 5 {
		t.Fatalf("Expected 5 reviews, got %d", len(reviews))
	}
	for i := 1; i < len(reviews); i++ {
		if !reviews[i-1].CreatedAt.After(reviews[i].CreatedAt) {
			t.Errorf("Reviews are not ordered newest first at %d", i)
		}
		if !reviews[i].IsApproved {
			t.Errorf("Unapproved review %d returned", reviews[i].ID)
		}
	}
}

func TestDeleteDoctorNullifiesReviews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	spec := &Specialization{Name: "Surgery"}
	mustCreate(t, repo, spec)
	doc := &Doctor{FirstName: "Anna", LastName: "Ivanova", Experience: 3}
	if err := repo.CreateDoctor(ctx, doc, []uint{spec.ID}); err != nil {
		t.Fatalf("CreateDoctor failed: %v", err)
	}
	mustCreate(t, repo,
		&Review{AuthorName: "a", Text: "t", Rating: 5, DoctorID: &doc.ID},
		&Review{AuthorName: "b", Text: "t", Rating: 4, DoctorID: &doc.ID},
	)

	if err := repo.DeleteDoctor(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDoctor failed: %v", err)
	}

	var reviews []Review
	repo.DB().Find(&reviews)
	if len(reviews) != 2 {
		t.Fatalf("Expected reviews to survive, got %d", len(reviews))
	}
	for _, r := range reviews {
		if r.DoctorID != nil {
			t.Errorf("Review %d still points at doctor %d", r.ID, *r.DoctorID)
		}
	}

	var links int64
	repo.DB().Model(&DoctorSpecialization{}).Count(&links)
	if links != 0 {
		t.Errorf("Expected join rows to be removed, got %d", links)
	}

	if err := repo.DeleteDoctor(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteServiceCascadesAppointments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	keep := &Service{Name: "Keep", Description: "d", IsActive: true}
	drop := &Service{Name: "Drop", Description: "d", IsActive: true}
	mustCreate(t, repo, keep, drop)
	day := NewDate(2026, time.November, 2)
	mustCreate(t, repo,
		&Appointment{ClientName: "a", Phone: "+79990000000", PetName: "Rex", ServiceID: drop.ID, DesiredDate: day},
		&Appointment{ClientName: "b", Phone: "+79990000001", PetName: "Tom", ServiceID: drop.ID, DesiredDate: day},
		&Appointment{ClientName: "c", Phone: "+79990000002", PetName: "Bim", ServiceID: keep.ID, DesiredDate: day},
	)

	if err := repo.DeleteService(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteService failed: %v", err)
	}

	var appointments []Appointment
	repo.DB().Find(&appointments)
	if len(appointments) != 1 || appointments[0].ServiceID != keep.ID {
		t.Errorf("Expected only the appointment of the kept service, got %+v", appointments)
	}
}

func TestAppointmentStatusIsRestricted(t *testing.T) {
	repo := newTestRepo(t)
	svc := &Service{Name: "Checkup", Description: "d", IsActive: true}
	mustCreate(t, repo, svc)
	day := NewDate(2026, time.November, 2)

	a := &Appointment{ClientName: "a", Phone: "1", PetName: "Rex", ServiceID: svc.ID, DesiredDate: day}
	mustCreate(t, repo, a)
	if a.Status != StatusNew {
		t.Errorf("Expected default status %q, got %q", StatusNew, a.Status)
	}

	bad := &Appointment{ClientName: "b", Phone: "1", PetName: "Rex", ServiceID: svc.ID, DesiredDate: day, Status: "done"}
	err := repo.DB().Create(bad).Error
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "status" {
		t.Errorf("Expected status validation error, got %v", err)
	}

	a.Status = "archived"
	if err := repo.DB().Save(a).Error; err == nil {
		t.Error("Expected invalid status update to fail")
	}
}

func TestReviewRatingBounds(t *testing.T) {
	repo := newTestRepo(t)
	for _, rating := range []int{0, 6, -1} {
		err := repo.DB().Create(&Review{AuthorName: "a", Text: "t", Rating: rating}).Error
		if err == nil {
			t.Errorf("Expected rating %d to be rejected", rating)
		}
	}
	for _, rating := range []int{1, 5} {
		if err := repo.DB().Create(&Review{AuthorName: "a", Text: "t", Rating: rating}).Error; err != nil {
			t.Errorf("Expected rating %d to be accepted, got %v", rating, err)
		}
	}
}

func TestUpdateDoctorReplacesSpecializations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s1 := &Specialization{Name: "Surgery"}
	s2 := &Specialization{Name: "Dentistry"}
	mustCreate(t, repo, s1, s2)

	doc := &Doctor{FirstName: "Anna", LastName: "Ivanova", Experience: 3, IsFeatured: true}
	if err := repo.CreateDoctor(ctx, doc, []uint{s1.ID}); err != nil {
		t.Fatalf("CreateDoctor failed: %v", err)
	}

	doc.IsFeatured = false
	doc.LastName = "Petrova"
	if err := repo.UpdateDoctor(ctx, doc, []uint{s2.ID}); err != nil {
		t.Fatalf("UpdateDoctor failed: %v", err)
	}

	got, err := repo.GetDoctor(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDoctor failed: %v", err)
	}
	if got.LastName != "Petrova" || got.IsFeatured {
		t.Errorf("Update not persisted: %+v", got)
	}
	if len(got.Specializations) != 1 || got.Specializations[0].ID != s2.ID {
		t.Errorf("Expected only Dentistry, got %+v", got.Specializations)
	}

	if _, err := repo.GetDoctor(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetServiceIgnoresActiveFlag(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	hidden := &Service{Name: "House call", Description: "Visit at home", Price: decimal.NewFromInt(4000), IsActive: false}
	mustCreate(t, repo, hidden)

	got, err := repo.GetService(ctx, hidden.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.Name != "House call" || got.IsActive {
		t.Errorf("GetService() = %+v", got)
	}
	if _, err := repo.GetService(ctx, hidden.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestServicesByIDsRechecksQuery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	surgery := &Service{Name: "Surgery", Description: "Operations", Price: decimal.NewFromInt(9000), IsActive: true}
	vacc := &Service{Name: "Вакцинация", Description: "Прививки", Price: decimal.NewFromInt(1200), IsActive: true}
	hidden := &Service{Name: "Vaccine boost", Description: "Retired", Price: decimal.NewFromInt(500), IsActive: false}
	mustCreate(t, repo, surgery, vacc, hidden)
	ids := []uint{surgery.ID, vacc.ID, hidden.ID}

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"surg", 1},
		{"ВАКЦ", 1},
		{"vacc", 0},
	}
	for _, tt := range tests {
		got, err := repo.ServicesByIDs(ctx, ids, tt.query)
		if err != nil {
			t.Fatalf("ServicesByIDs(%q) failed: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("ServicesByIDs(%q) returned %d services, want %d", tt.query, len(got), tt.want)
		}
	}

	if got, err := repo.ServicesByIDs(ctx, nil, "surg"); err != nil || len(got) != 0 {
		t.Errorf("ServicesByIDs(nil) = %v, %v", got, err)
	}
}
