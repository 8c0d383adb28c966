package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SearchServices returns active services, narrowed to those whose name or
// description contains query (case-insensitive) when query is not empty.
func (r *GormRepository) SearchServices(ctx context.Context, query string) ([]Service, error) {
	var services []Service
	if err := r.matchServices(ctx, query).Order("name, id").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to search services: %w", err)
	}
	return services, nil
}

// GetService loads a service whether or not it is active.
func (r *GormRepository) GetService(ctx context.Context, id uint) (*Service, error) {
	var service Service
	if err := r.db.WithContext(ctx).First(&service, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &service, nil
}

// ServicesByIDs returns the services among ids that SearchServices would
// return for query. The ids may come from a stale index.
func (r *GormRepository) ServicesByIDs(ctx context.Context, ids []uint, query string) ([]Service, error) {
	services := []Service{}
	if len(ids) == 0 {
		return services, nil
	}
	if err := r.matchServices(ctx, query).
		Where("id IN ?", ids).
		Order("name, id").
		Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	return services, nil
}

func (r *GormRepository) matchServices(ctx context.Context, query string) *gorm.DB {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if query != "" {
		pattern := ContainsPattern(query)
		q = q.Where(
			fmt.Sprintf(`(%s LIKE ? ESCAPE '\' OR %s LIKE ? ESCAPE '\')`, Lower(r.db, "name"), Lower(r.db, "description")),
			pattern, pattern,
		)
	}
	return q
}

func (r *GormRepository) AllServices(ctx context.Context) ([]Service, error) {
	var services []Service
	if err := r.db.WithContext(ctx).Order("id").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// DeleteService removes the service together with its appointments.
func (r *GormRepository) DeleteService(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Service{ID: id})
	if res.Error != nil {
		return fmt.Errorf("failed to delete service: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) ActivePromotions(ctx context.Context, today Date, limit int) ([]Promotion, error) {
	q := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", today, today).
		Order("start_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var promos []Promotion
	if err := q.Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promos, nil
}

func (r *GormRepository) FeaturedDoctors(ctx context.Context, limit int) ([]Doctor, error) {
	q := r.db.WithContext(ctx).Preload("Specializations").Where("is_featured = ?", true).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var doctors []Doctor
	if err := q.Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("failed to list featured doctors: %w", err)
	}
	return doctors, nil
}

// TopRatedDoctors ranks doctors by mean review rating. Doctors without a
// counted review are left out. Only approved reviews count unless
// includeUnapproved is set.
func (r *GormRepository) TopRatedDoctors(ctx context.Context, limit int, includeUnapproved bool) ([]DoctorRating, error) {
	type ratingRow struct {
		DoctorID    uint
		AvgRating   float64
		ReviewCount int64
	}

	q := r.db.WithContext(ctx).
		Model(&Review{}).
		Select("doctor_id, AVG(rating) AS avg_rating, COUNT(id) AS review_count").
		Where("doctor_id IS NOT NULL")
	if !includeUnapproved {
		q = q.Where("is_approved = ?", true)
	}
	q = q.Group("doctor_id").Order("avg_rating DESC, doctor_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []ratingRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to rank doctors: %w", err)
	}
	if len(rows) == 0 {
		return []DoctorRating{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.DoctorID)
	}
	var doctors []Doctor
	if err := r.db.WithContext(ctx).Preload("Specializations").Where("id IN ?", ids).Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("failed to load ranked doctors: %w", err)
	}
	byID := make(map[uint]Doctor, len(doctors))
	for _, d := range doctors {
		byID[d.ID] = d
	}

	ratings := make([]DoctorRating, 0, len(rows))
	for _, row := range rows {
		d, ok := byID[row.DoctorID]
		if !ok {
			continue
		}
		ratings = append(ratings, DoctorRating{Doctor: d, AvgRating: row.AvgRating, ReviewCount: row.ReviewCount})
	}
	return ratings, nil
}

func (r *GormRepository) RecentApprovedReviews(ctx context.Context, limit int) ([]Review, error) {
	q := r.db.WithContext(ctx).
		Preload("Doctor").
		Where("is_approved = ?", true).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var reviews []Review
	if err := q.Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (r *GormRepository) AppointmentsOn(ctx context.Context, date Date, status string) ([]Appointment, error) {
	q := r.db.WithContext(ctx).Preload("Service").Where("desired_date = ?", date)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var appointments []Appointment
	if err := q.Order("id").Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *GormRepository) LogNotification(ctx context.Context, entry *NotificationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}
