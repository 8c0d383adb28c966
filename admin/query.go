package admin

import (
	"context"
	"encoding"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"vetclinic/models"
)

const (
	searchVar = "q"
	orderVar  = "o"
	pageVar   = "p"
)

type filterKind string

const (
	fieldFilter    filterKind = "field"
	relationFilter filterKind = "relation"
	manyFilter     filterKind = "many_to_many"
)

type filter struct {
	name  string
	kind  filterKind
	field *schema.Field
	rel   *schema.Relationship
}

// FilterInfo describes a list filter to the client.
type FilterInfo struct {
	Name    string        `json:"name"`
	Kind    filterKind    `json:"kind"`
	Lookups []string      `json:"lookups"`
	Choices []interface{} `json:"choices,omitempty"`
}

type Choice struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

type row struct {
	ID     uint          `json:"id"`
	Str    string        `json:"str"`
	URL    string        `json:"url"`
	Values []interface{} `json:"values"`
}

type columnInfo struct {
	Name     string `json:"name"`
	Link     bool   `json:"link"`
	Editable bool   `json:"editable"`
}

func (m *modelAdmin[T, P]) setupFilters() error {
	for _, name := range m.cfg.ListFilter {
		switch {
		case m.byName[name] != nil:
			m.filters = append(m.filters, filter{name: name, kind: fieldFilter, field: m.byName[name]})
		case m.relation(name, schema.BelongsTo) != nil:
			rel := m.relation(name, schema.BelongsTo)
			m.filters = append(m.filters, filter{name: name, kind: relationFilter, field: rel.References[0].ForeignKey, rel: rel})
		case m.relation(name, schema.Many2Many) != nil:
			m.filters = append(m.filters, filter{name: name, kind: manyFilter, rel: m.relation(name, schema.Many2Many)})
		default:
			return fmt.Errorf("admin: %s list_filter has unknown field %q", m.cfg.Name, name)
		}
	}
	return nil
}

// setupSearch turns search_fields into SQL conditions with one placeholder
// each.
func (m *modelAdmin[T, P]) setupSearch() error {
	for _, name := range m.cfg.SearchFields {
		relName, colName, related := strings.Cut(name, "__")
		if !related {
			f, ok := m.byName[name]
			if !ok {
				return fmt.Errorf("admin: %s search_fields has unknown field %q", m.cfg.Name, name)
			}
			m.search = append(m.search, models.Lower(m.site.db, m.schema.Table+"."+f.DBName)+` LIKE ? ESCAPE '\'`)
			continue
		}

		rel := m.relation(relName, schema.BelongsTo)
		if rel == nil {
			return fmt.Errorf("admin: %s search_fields has unknown relation %q", m.cfg.Name, relName)
		}
		target := rel.FieldSchema.LookUpField(colName)
		if target == nil {
			return fmt.Errorf("admin: %s search_fields: %s has no field %q", m.cfg.Name, relName, colName)
		}
		ref := rel.References[0]
		m.search = append(m.search, fmt.Sprintf(
			`%s.%s IN (SELECT %s FROM %s WHERE %s LIKE ? ESCAPE '\')`,
			m.schema.Table, ref.ForeignKey.DBName, ref.PrimaryKey.DBName, rel.FieldSchema.Table, models.Lower(m.site.db, target.DBName),
		))
	}
	return nil
}

// applySearch splits the query into words; every word must match at least
// one search field.
func (m *modelAdmin[T, P]) applySearch(q *gorm.DB, query string) *gorm.DB {
	if len(m.search) == 0 {
		return q
	}
	for _, term := range strings.Fields(query) {
		pattern := models.ContainsPattern(term)
		args := make([]interface{}, len(m.search))
		for i := range args {
			args[i] = pattern
		}
		q = q.Where("("+strings.Join(m.search, " OR ")+")", args...)
	}
	return q
}

func (m *modelAdmin[T, P]) findFilter(name string) *filter {
	for i := range m.filters {
		if m.filters[i].name == name {
			return &m.filters[i]
		}
	}
	return nil
}

func (m *modelAdmin[T, P]) applyFilters(q *gorm.DB, params url.Values) (*gorm.DB, error) {
	hierarchy := map[string]string{}
	for key, values := range params {
		if key == searchVar || key == orderVar || key == pageVar || len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]
		name, lookup, _ := strings.Cut(key, "__")

		if m.dateCol != nil && name == m.dateCol.DBName && (lookup == "year" || lookup == "month" || lookup == "day") {
			hierarchy[lookup] = raw
			continue
		}

		f := m.findFilter(name)
		if f == nil {
			return nil, fmt.Errorf("unknown filter %q", key)
		}
		var err error
		if q, err = m.applyFilter(q, f, lookup, raw); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	if len(hierarchy) > 0 {
		return m.applyDateHierarchy(q, hierarchy)
	}
	return q, nil
}

func (m *modelAdmin[T, P]) applyFilter(q *gorm.DB, f *filter, lookup, raw string) (*gorm.DB, error) {
	if f.kind == manyFilter {
		if lookup != "" && lookup != "exact" {
			return nil, fmt.Errorf("unsupported lookup %q", lookup)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		var own, other *schema.Reference
		for _, ref := range f.rel.References {
			if ref.OwnPrimaryKey {
				own = ref
			} else {
				other = ref
			}
		}
		return q.Where(fmt.Sprintf("%s.%s IN (SELECT %s FROM %s WHERE %s = ?)",
			m.schema.Table, own.PrimaryKey.DBName, own.ForeignKey.DBName, f.rel.JoinTable.Table, other.ForeignKey.DBName,
		), id), nil
	}

	col := clause.Column{Table: m.schema.Table, Name: f.field.DBName}
	if lookup == "isnull" {
		isNull, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		if isNull {
			return q.Where(clause.Eq{Column: col, Value: nil}), nil
		}
		return q.Where(clause.Neq{Column: col, Value: nil}), nil
	}

	value, err := parseValue(f.field, raw)
	if err != nil {
		return nil, err
	}
	switch lookup {
	case "", "exact":
		return q.Where(clause.Eq{Column: col, Value: value}), nil
	case "gte":
		return q.Where(clause.Gte{Column: col, Value: value}), nil
	case "lte":
		return q.Where(clause.Lte{Column: col, Value: value}), nil
	default:
		return nil, fmt.Errorf("unsupported lookup %q", lookup)
	}
}

// applyDateHierarchy narrows the list to one year, month or day of the
// date_hierarchy field.
func (m *modelAdmin[T, P]) applyDateHierarchy(q *gorm.DB, parts map[string]string) (*gorm.DB, error) {
	year, err := strconv.Atoi(parts["year"])
	if err != nil {
		return nil, fmt.Errorf("date hierarchy needs a valid year")
	}
	month, day := 1, 1
	step := func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	if v, ok := parts["month"]; ok {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("invalid month %q", v)
		}
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	}
	if v, ok := parts["day"]; ok {
		if _, ok := parts["month"]; !ok {
			return nil, fmt.Errorf("day requires a month")
		}
		if day, err = strconv.Atoi(v); err != nil || day < 1 || day > 31 {
			return nil, fmt.Errorf("invalid day %q", v)
		}
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	}

	col := clause.Column{Table: m.schema.Table, Name: m.dateCol.DBName}
	var from, to interface{}
	if m.dateCol.DataType == schema.Time {
		start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, m.site.opts.Location)
		from, to = start, step(start)
	} else {
		start := models.NewDate(year, time.Month(month), day)
		from, to = start, models.DateOf(step(start.Time))
	}
	return q.Where(clause.Gte{Column: col, Value: from}).Where(clause.Lt{Column: col, Value: to}), nil
}

func (m *modelAdmin[T, P]) ordering(param string) ([]clause.OrderByColumn, error) {
	names := m.cfg.Ordering
	if param != "" {
		names = strings.Split(param, ",")
	}

	var order []clause.OrderByColumn
	hasPK := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		desc := strings.HasPrefix(name, "-")
		f, ok := m.byName[strings.TrimPrefix(name, "-")]
		if !ok {
			return nil, fmt.Errorf("cannot order by %q", name)
		}
		hasPK = hasPK || f.PrimaryKey
		order = append(order, clause.OrderByColumn{Column: clause.Column{Table: m.schema.Table, Name: f.DBName}, Desc: desc})
	}
	if !hasPK && m.schema.PrioritizedPrimaryField != nil {
		order = append(order, clause.OrderByColumn{
			Column: clause.Column{Table: m.schema.Table, Name: m.schema.PrioritizedPrimaryField.DBName},
			Desc:   true,
		})
	}
	return order, nil
}

func (m *modelAdmin[T, P]) changelist(c *gin.Context) {
	ctx := c.Request.Context()
	params := c.Request.URL.Query()

	q := m.site.db.WithContext(ctx).Model(new(T))
	q, err := m.applyFilters(q, params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := params.Get(searchVar)
	q = m.applySearch(q, query).Session(&gorm.Session{})

	order, err := m.ordering(params.Get(orderVar))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		serverError(c, err)
		return
	}

	perPage := m.site.opts.PerPage
	numPages := int((total + int64(perPage) - 1) / int64(perPage))
	if numPages == 0 {
		numPages = 1
	}
	page := 1
	if raw := params.Get(pageVar); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 || page > numPages {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
			return
		}
	}

	list := q.Order(clause.OrderBy{Columns: order}).Limit(perPage).Offset((page - 1) * perPage)
	for _, p := range m.cfg.Preload {
		list = list.Preload(p)
	}
	var records []T
	if err := list.Find(&records).Error; err != nil {
		serverError(c, err)
		return
	}

	rows := make([]row, 0, len(records))
	for i := range records {
		obj := &records[i]
		r := row{ID: P(obj).PrimaryKey(), Str: P(obj).String()}
		r.URL = fmt.Sprintf("%s%d/change/", m.info.URL, r.ID)
		for _, col := range m.columns {
			r.Values = append(r.Values, col.value(obj))
		}
		rows = append(rows, r)
	}

	filters, err := m.filterInfo(ctx)
	if err != nil {
		serverError(c, err)
		return
	}
	columns := make([]columnInfo, 0, len(m.columns))
	for _, col := range m.columns {
		columns = append(columns, columnInfo{Name: col.Name, Link: col.Link, Editable: col.Editable})
	}
	actions := make([]Action, 0, len(m.actions))
	actions = append(actions, deleteSelected)
	for _, a := range m.cfg.Actions {
		actions = append(actions, a)
	}

	resp := gin.H{
		"model":         m.info,
		"columns":       columns,
		"filters":       filters,
		"search_fields": m.cfg.SearchFields,
		"search_query":  query,
		"actions":       actions,
		"count":         total,
		"page":          page,
		"num_pages":     numPages,
		"per_page":      perPage,
		"results":       rows,
	}
	if m.dateCol != nil {
		resp["date_hierarchy"] = m.dateCol.DBName
	}
	c.JSON(http.StatusOK, resp)
}

func (m *modelAdmin[T, P]) filterInfo(ctx context.Context) ([]FilterInfo, error) {
	infos := make([]FilterInfo, 0, len(m.filters))
	for _, f := range m.filters {
		info := FilterInfo{Name: f.name, Kind: f.kind, Lookups: []string{"exact"}}
		switch f.kind {
		case fieldFilter:
			switch {
			case f.field.DataType == schema.Bool:
				info.Choices = []interface{}{true, false}
			case m.cfg.Choices[f.name] != nil:
				info.Choices = m.cfg.Choices[f.name]
			default:
				info.Lookups = append(info.Lookups, "gte", "lte")
			}
			if !f.field.NotNull {
				info.Lookups = append(info.Lookups, "isnull")
			}
		case relationFilter, manyFilter:
			choices, err := relatedChoices(ctx, m.site.db, f.rel.FieldSchema)
			if err != nil {
				return nil, err
			}
			for _, ch := range choices {
				info.Choices = append(info.Choices, ch)
			}
			if f.kind == relationFilter && !f.field.NotNull {
				info.Lookups = append(info.Lookups, "isnull")
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// relatedChoices lists every row of a related model with its label.
func relatedChoices(ctx context.Context, db *gorm.DB, related *schema.Schema) ([]Choice, error) {
	slice := reflect.New(reflect.SliceOf(related.ModelType))
	if err := db.WithContext(ctx).Order(related.PrioritizedPrimaryField.DBName).Find(slice.Interface()).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s choices: %w", related.Table, err)
	}
	rows := slice.Elem()
	choices := make([]Choice, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		if r, ok := rows.Index(i).Addr().Interface().(Record); ok {
			choices = append(choices, Choice{ID: r.PrimaryKey(), Label: r.String()})
		}
	}
	return choices, nil
}

// parseValue converts a query string value to the Go type of field.
func parseValue(f *schema.Field, raw string) (interface{}, error) {
	if f.DataType == schema.Time {
		if d, err := models.ParseDate(raw); err == nil {
			return d.Time, nil
		}
		return time.Parse(time.RFC3339, raw)
	}
	if u, ok := reflect.New(f.IndirectFieldType).Interface().(encoding.TextUnmarshaler); ok {
		if err := u.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
		return reflect.ValueOf(u).Elem().Interface(), nil
	}
	switch f.DataType {
	case schema.Bool:
		return strconv.ParseBool(raw)
	case schema.Int:
		return strconv.ParseInt(raw, 10, 64)
	case schema.Uint:
		return strconv.ParseUint(raw, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(raw, 64)
	}
	return raw, nil
}

func isDateField(f *schema.Field) bool {
	if f.DataType == schema.Time {
		return true
	}
	_, ok := reflect.New(f.IndirectFieldType).Interface().(*models.Date)
	return ok
}
