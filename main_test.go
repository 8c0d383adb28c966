package main

import (
	"path/filepath"
	"testing"

	"vetclinic/models"
)

func TestNewAppMigratesOnlyWhenAsked(t *testing.T) {
	t.Setenv("DB_DRIVER", models.DriverSQLite)
	t.Setenv("DB_URL", filepath.Join(t.TempDir(), "vetclinic.db"))
	t.Setenv("REDIS_HOST", "")
	t.Setenv("KAFKA_BROKER", "")
	t.Setenv("ELASTICSEARCH_URL", "")

	a, err := newApp(false)
	if err != nil {
		t.Fatalf("newApp(false) failed: %v", err)
	}
	if a.repo.DB().Migrator().HasTable(&models.Doctor{}) {
		t.Error("newApp(false) created tables")
	}
	a.Close()

	a, err = newApp(true)
	if err != nil {
		t.Fatalf("newApp(true) failed: %v", err)
	}
	defer a.Close()
	for _, table := range []interface{}{&models.Doctor{}, &models.Service{}, &models.Tour{}} {
		if !a.repo.DB().Migrator().HasTable(table) {
			t.Errorf("newApp(true) did not create the table for %T", table)
		}
	}
}
