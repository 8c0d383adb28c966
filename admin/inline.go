package admin

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// Inline edits a many-to-many relation from the owning model's form. The
// form carries the selected ids under the inline's name.
type Inline interface {
	Name() string
	field() string
	choices(ctx context.Context, db *gorm.DB) ([]Choice, error)
	selected(ctx context.Context, db *gorm.DB, owner Record) ([]uint, error)
	check(ctx context.Context, db *gorm.DB, ids []uint) string
	replace(tx *gorm.DB, owner Record, ids []uint) error
}

type manyToMany[R any, RP recordPtr[R]] struct {
	relation string
	name     string
}

// ManyToMany exposes the relation field (the Go field name, "Specializations")
// under name ("specializations").
func ManyToMany[R any, RP recordPtr[R]](field, name string) Inline {
	return &manyToMany[R, RP]{relation: field, name: name}
}

func (i *manyToMany[R, RP]) Name() string  { return i.name }
func (i *manyToMany[R, RP]) field() string { return i.relation }

func (i *manyToMany[R, RP]) choices(ctx context.Context, db *gorm.DB) ([]Choice, error) {
	var related []R
	if err := db.WithContext(ctx).Order("id").Find(&related).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s choices: %w", i.name, err)
	}
	choices := make([]Choice, 0, len(related))
	for k := range related {
		r := RP(&related[k])
		choices = append(choices, Choice{ID: r.PrimaryKey(), Label: r.String()})
	}
	return choices, nil
}

func (i *manyToMany[R, RP]) selected(ctx context.Context, db *gorm.DB, owner Record) ([]uint, error) {
	var related []R
	if err := db.WithContext(ctx).Model(owner).Association(i.relation).Find(&related); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", i.name, err)
	}
	ids := make([]uint, 0, len(related))
	for k := range related {
		ids = append(ids, RP(&related[k]).PrimaryKey())
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}

func (i *manyToMany[R, RP]) check(ctx context.Context, db *gorm.DB, ids []uint) string {
	if len(ids) == 0 {
		return ""
	}
	var found []uint
	if err := db.WithContext(ctx).Model(new(R)).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err.Error()
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Sprintf("Select a valid choice. %d is not one of the available choices.", id)
		}
	}
	return ""
}

func (i *manyToMany[R, RP]) replace(tx *gorm.DB, owner Record, ids []uint) error {
	assoc := tx.Model(owner).Association(i.relation)
	if len(ids) == 0 {
		if err := assoc.Clear(); err != nil {
			return fmt.Errorf("failed to clear %s: %w", i.name, err)
		}
		return nil
	}
	var related []R
	if err := tx.Where("id IN ?", ids).Find(&related).Error; err != nil {
		return fmt.Errorf("failed to load %s: %w", i.name, err)
	}
	if err := assoc.Replace(related); err != nil {
		return fmt.Errorf("failed to replace %s: %w", i.name, err)
	}
	return nil
}
