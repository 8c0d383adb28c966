package admin

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Record is implemented by every model the admin manages.
type Record interface {
	PrimaryKey() uint
	String() string
}

type recordPtr[T any] interface {
	*T
	Record
}

// Column computes a list_display value that is not a model field.
type Column[T any] func(obj *T) interface{}

// ModelAdmin declares how one model is listed, searched and edited.
// Field names are column names; relations are named like their column
// without the _id suffix ("service", "doctor"), and search fields may
// follow a relation with "__" ("service__name").
type ModelAdmin[T any] struct {
	App               string
	Name              string
	VerboseName       string
	VerboseNamePlural string

	ListDisplay      []string
	ListDisplayLinks []string
	Columns          map[string]Column[T]
	ListFilter       []string
	ListEditable     []string
	SearchFields     []string
	Ordering         []string
	DateHierarchy    string
	ReadonlyFields   []string
	Exclude          []string
	Choices          map[string][]interface{}
	Preload          []string

	Inlines []Inline
	Actions []Action

	// New returns a record with its defaults filled in.
	New func() *T
	// Clean adds model-specific validation on top of the binding tags.
	Clean func(obj *T) Errors
}

type column[T any] struct {
	Name     string
	value    func(obj *T) interface{}
	Link     bool
	Editable bool
}

type modelAdmin[T any, P recordPtr[T]] struct {
	site    *Site
	cfg     ModelAdmin[T]
	schema  *schema.Schema
	info    ModelInfo
	fields  []*schema.Field
	byName  map[string]*schema.Field
	columns []column[T]
	filters []filter
	search  []string
	inlines map[string]Inline
	actions map[string]Action
	dateCol *schema.Field
}

// Register adds a model to the site. Configuration mistakes such as
// unknown field names are reported here rather than at request time.
func Register[T any, P recordPtr[T]](site *Site, cfg ModelAdmin[T]) error {
	stmt := &gorm.Statement{DB: site.db}
	if err := stmt.Parse(new(T)); err != nil {
		return fmt.Errorf("admin: failed to parse %T: %w", new(T), err)
	}
	sch := stmt.Schema

	if cfg.App == "" {
		return fmt.Errorf("admin: %s has no app", sch.Name)
	}
	if cfg.Name == "" {
		cfg.Name = strings.ToLower(sch.Name)
	}
	if cfg.VerboseName == "" {
		cfg.VerboseName = strings.ReplaceAll(site.db.NamingStrategy.ColumnName("", sch.Name), "_", " ")
	}
	if cfg.VerboseNamePlural == "" {
		cfg.VerboseNamePlural = cfg.VerboseName + "s"
	}

	m := &modelAdmin[T, P]{
		site:   site,
		cfg:    cfg,
		schema: sch,
		info: ModelInfo{
			App:               cfg.App,
			Name:              cfg.Name,
			VerboseName:       cfg.VerboseName,
			VerboseNamePlural: cfg.VerboseNamePlural,
			URL:               fmt.Sprintf("/admin/%s/%s/", cfg.App, cfg.Name),
		},
		byName:  map[string]*schema.Field{},
		inlines: map[string]Inline{},
		actions: map[string]Action{},
	}

	for _, f := range sch.Fields {
		if f.DBName == "" || contains(cfg.Exclude, f.DBName) {
			continue
		}
		m.fields = append(m.fields, f)
		m.byName[f.DBName] = f
	}

	if err := m.setupColumns(); err != nil {
		return err
	}
	if err := m.setupFilters(); err != nil {
		return err
	}
	if err := m.setupSearch(); err != nil {
		return err
	}
	for _, o := range cfg.Ordering {
		if _, ok := m.byName[strings.TrimPrefix(o, "-")]; !ok {
			return fmt.Errorf("admin: %s ordering uses unknown field %q", cfg.Name, o)
		}
	}
	if cfg.DateHierarchy != "" {
		f, ok := m.byName[cfg.DateHierarchy]
		if !ok || !isDateField(f) {
			return fmt.Errorf("admin: %s date_hierarchy %q is not a date field", cfg.Name, cfg.DateHierarchy)
		}
		m.dateCol = f
	}
	for _, in := range cfg.Inlines {
		if _, ok := sch.Relationships.Relations[in.field()]; !ok {
			return fmt.Errorf("admin: %s has no relation %q for inline %q", cfg.Name, in.field(), in.Name())
		}
		m.inlines[in.Name()] = in
	}
	m.actions[deleteSelected.Name] = deleteSelected
	for _, a := range cfg.Actions {
		m.actions[a.Name] = a
	}

	site.add(m)
	return nil
}

func (m *modelAdmin[T, P]) meta() ModelInfo {
	return m.info
}

func (m *modelAdmin[T, P]) newRecord() *T {
	if m.cfg.New != nil {
		return m.cfg.New()
	}
	return new(T)
}

func (m *modelAdmin[T, P]) count(ctx context.Context) (int64, error) {
	var n int64
	if err := m.site.db.WithContext(ctx).Model(new(T)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", m.cfg.Name, err)
	}
	return n, nil
}

func (m *modelAdmin[T, P]) setupColumns() error {
	display := m.cfg.ListDisplay
	if len(display) == 0 {
		display = []string{"__str__"}
	}
	links := m.cfg.ListDisplayLinks
	if len(links) == 0 {
		links = display[:1]
	}
	for _, name := range m.cfg.ListEditable {
		f, ok := m.byName[name]
		if !ok || !contains(display, name) || contains(links, name) || !m.writable(f) {
			return fmt.Errorf("admin: %s list_editable %q must be a writable, displayed, unlinked field", m.cfg.Name, name)
		}
	}

	for _, name := range display {
		col := column[T]{Name: name, Link: contains(links, name), Editable: contains(m.cfg.ListEditable, name)}
		switch {
		case name == "__str__":
			col.value = func(obj *T) interface{} { return P(obj).String() }
		case m.cfg.Columns[name] != nil:
			col.value = m.cfg.Columns[name]
		case m.byName[name] != nil:
			f := m.byName[name]
			col.value = func(obj *T) interface{} {
				return f.ReflectValueOf(context.Background(), reflect.ValueOf(obj).Elem()).Interface()
			}
		case m.relation(name, schema.BelongsTo) != nil:
			rel := m.relation(name, schema.BelongsTo)
			m.cfg.Preload = appendUnique(m.cfg.Preload, rel.Name)
			col.value = func(obj *T) interface{} {
				return relatedLabel(reflect.ValueOf(obj).Elem().FieldByIndex(rel.Field.StructField.Index))
			}
		default:
			return fmt.Errorf("admin: %s list_display has unknown column %q", m.cfg.Name, name)
		}
		m.columns = append(m.columns, col)
	}
	return nil
}

// relation finds a relation by its snake-case name.
func (m *modelAdmin[T, P]) relation(name string, types ...schema.RelationshipType) *schema.Relationship {
	for _, rel := range m.schema.Relationships.Relations {
		if m.site.db.NamingStrategy.ColumnName("", rel.Name) != name {
			continue
		}
		for _, t := range types {
			if rel.Type == t {
				return rel
			}
		}
	}
	return nil
}

// writable reports whether a field may be set through forms.
func (m *modelAdmin[T, P]) writable(f *schema.Field) bool {
	return !f.PrimaryKey &&
		f.AutoCreateTime == 0 &&
		f.AutoUpdateTime == 0 &&
		!contains(m.cfg.ReadonlyFields, f.DBName)
}

func relatedLabel(v reflect.Value) interface{} {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
	} else if v.CanAddr() {
		v = v.Addr()
	}
	if r, ok := v.Interface().(Record); ok {
		return r.String()
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}
