package fixtures

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"vetclinic/models"
)

func TestApplyDemo(t *testing.T) {
	repo, err := models.NewGormRepository(models.DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	f, err := Demo()
	if err != nil {
		t.Fatalf("Demo() failed: %v", err)
	}
	counts, err := Apply(ctx, repo.DB(), f)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for table, want := range map[string]int{"specializations": 4, "doctors": 3, "services": 4, "reviews": 3, "tours": 1} {
		if counts[table] != want {
			t.Errorf("counts[%s] = %d, want %d", table, counts[table], want)
		}
	}

	doctor, err := repo.GetDoctor(ctx, 1)
	if err != nil {
		t.Fatalf("GetDoctor failed: %v", err)
	}
	if doctor.FullName() != "Anna Petrova" || len(doctor.Specializations) != 2 {
		t.Errorf("doctor = %s with %d specializations", doctor.FullName(), len(doctor.Specializations))
	}

	var house models.Service
	repo.DB().Where("name = ?", "House call").First(&house)
	if house.IsActive {
		t.Error("is_active: false was ignored")
	}

	var tour models.Tour
	repo.DB().Preload("Halls").Preload("Guide").First(&tour)
	if len(tour.Halls) != 2 || tour.Guide == nil || tour.Guide.LastName != "Orlova" {
		t.Errorf("tour = %+v", tour)
	}

	again, err := Apply(ctx, repo.DB(), f)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Apply created rows: %v", again)
	}
	var links int64
	repo.DB().Model(&models.DoctorSpecialization{}).Count(&links)
	if links != 5 {
		t.Errorf("doctor_specializations rows = %d, want 5", links)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "broken.yaml"))
	if err == nil || !strings.Contains(err.Error(), "specialisations") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if _, err := Load(filepath.Join("testdata", "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestApplyRollsBackOnUnknownReference(t *testing.T) {
	repo, err := models.NewGormRepository(models.DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer repo.Close()

	f, err := Load(filepath.Join("testdata", "unknown_doctor.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = Apply(context.Background(), repo.DB(), f)
	if err == nil || !strings.Contains(err.Error(), `unknown doctor "Nobody Known"`) {
		t.Fatalf("expected unknown doctor error, got %v", err)
	}
	var n int64
	repo.DB().Model(&models.Service{}).Count(&n)
	if n != 0 {
		t.Errorf("services = %d, want 0 after rollback", n)
	}
}
