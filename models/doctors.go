package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func (r *GormRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	var doctors []Doctor
	if err := r.db.WithContext(ctx).
		Preload("Specializations").
		Order("last_name, first_name, id").
		Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *GormRepository) GetDoctor(ctx context.Context, id uint) (*Doctor, error) {
	var doctor Doctor
	if err := r.db.WithContext(ctx).Preload("Specializations").First(&doctor, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &doctor, nil
}

// CreateDoctor inserts the doctor and links the given specializations in
// one transaction.
func (r *GormRepository) CreateDoctor(ctx context.Context, doctor *Doctor, specializationIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Specializations").Create(doctor).Error; err != nil {
			return fmt.Errorf("failed to create doctor: %w", err)
		}
		return replaceSpecializations(tx, doctor, specializationIDs)
	})
}

func (r *GormRepository) UpdateDoctor(ctx context.Context, doctor *Doctor, specializationIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(doctor).Omit("Specializations").Select("*").Updates(doctor)
		if res.Error != nil {
			return fmt.Errorf("failed to update doctor: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return replaceSpecializations(tx, doctor, specializationIDs)
	})
}

func replaceSpecializations(tx *gorm.DB, doctor *Doctor, ids []uint) error {
	specs := []Specialization{}
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Order("name").Find(&specs).Error; err != nil {
			return fmt.Errorf("failed to load specializations: %w", err)
		}
	}
	if err := tx.Model(doctor).Association("Specializations").Replace(specs); err != nil {
		return fmt.Errorf("failed to link specializations: %w", err)
	}
	doctor.Specializations = specs
	return nil
}

// DeleteDoctor removes the doctor; its reviews stay with doctor_id cleared.
func (r *GormRepository) DeleteDoctor(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Doctor{ID: id})
	if res.Error != nil {
		return fmt.Errorf("failed to delete doctor: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) DoctorReviews(ctx context.Context, doctorID uint, approvedOnly bool) ([]Review, error) {
	q := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID)
	if approvedOnly {
		q = q.Where("is_approved = ?", true)
	}
	var reviews []Review
	if err := q.Order("created_at DESC, id DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (r *GormRepository) ListSpecializations(ctx context.Context) ([]Specialization, error) {
	var specs []Specialization
	if err := r.db.WithContext(ctx).Order("name, id").Find(&specs).Error; err != nil {
		return nil, fmt.Errorf("failed to list specializations: %w", err)
	}
	return specs, nil
}

func (r *GormRepository) CountSpecializations(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&Specialization{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count specializations: %w", err)
	}
	return n, nil
}
