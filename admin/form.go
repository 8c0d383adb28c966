package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"vetclinic/events"
	"vetclinic/models"
	"vetclinic/monitoring"
)

// Errors maps field names to validation messages. "__all__" holds errors
// that belong to no single field.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

type FieldInfo struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Required  bool          `json:"required"`
	Nullable  bool          `json:"nullable"`
	MaxLength int           `json:"max_length,omitempty"`
	Readonly  bool          `json:"readonly"`
	Choices   []interface{} `json:"choices,omitempty"`
	Relation  string        `json:"relation,omitempty"`
}

type InlineInfo struct {
	Name     string   `json:"name"`
	Choices  []Choice `json:"choices"`
	Selected []uint   `json:"selected"`
}

func (m *modelAdmin[T, P]) fieldInfo() []FieldInfo {
	infos := make([]FieldInfo, 0, len(m.fields))
	for _, f := range m.fields {
		if f.PrimaryKey {
			continue
		}
		binding := f.StructField.Tag.Get("binding")
		info := FieldInfo{
			Name:     f.DBName,
			Type:     string(f.DataType),
			Required: strings.Contains(binding, "required"),
			Nullable: f.FieldType.Kind() == reflect.Ptr,
			Readonly: !m.writable(f),
			Choices:  m.cfg.Choices[f.DBName],
		}
		if f.DataType == schema.String {
			info.MaxLength = f.Size
		}
		for _, rel := range m.schema.Relationships.Relations {
			if rel.Type == schema.BelongsTo && rel.References[0].ForeignKey == f {
				info.Relation = m.site.db.NamingStrategy.ColumnName("", rel.Name)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func (m *modelAdmin[T, P]) inlineInfo(ctx context.Context, obj *T) ([]InlineInfo, error) {
	infos := make([]InlineInfo, 0, len(m.cfg.Inlines))
	for _, in := range m.cfg.Inlines {
		choices, err := in.choices(ctx, m.site.db)
		if err != nil {
			return nil, err
		}
		selected := []uint{}
		if obj != nil {
			if selected, err = in.selected(ctx, m.site.db, P(obj)); err != nil {
				return nil, err
			}
		}
		infos = append(infos, InlineInfo{Name: in.Name(), Choices: choices, Selected: selected})
	}
	return infos, nil
}

func (m *modelAdmin[T, P]) renderForm(c *gin.Context, status int, obj *T, errs Errors) {
	ctx := c.Request.Context()
	var existing *T
	if obj != nil && P(obj).PrimaryKey() != 0 {
		existing = obj
	}
	inlines, err := m.inlineInfo(ctx, existing)
	if err != nil {
		serverError(c, err)
		return
	}
	resp := gin.H{
		"model":   m.info,
		"fields":  m.fieldInfo(),
		"inlines": inlines,
	}
	if obj != nil {
		resp["object"] = obj
		resp["str"] = P(obj).String()
	}
	if errs != nil {
		resp["errors"] = errs
	}
	c.JSON(status, resp)
}

func (m *modelAdmin[T, P]) load(ctx context.Context, c *gin.Context) (*T, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": m.cfg.VerboseName + " not found"})
		return nil, false
	}
	obj := new(T)
	if err := m.site.db.WithContext(ctx).First(obj, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": m.cfg.VerboseName + " not found"})
			return nil, false
		}
		serverError(c, err)
		return nil, false
	}
	return obj, true
}

func (m *modelAdmin[T, P]) addForm(c *gin.Context) {
	m.renderForm(c, http.StatusOK, nil, nil)
}

func (m *modelAdmin[T, P]) changeForm(c *gin.Context) {
	obj, ok := m.load(c.Request.Context(), c)
	if !ok {
		return
	}
	m.renderForm(c, http.StatusOK, obj, nil)
}

func (m *modelAdmin[T, P]) add(c *gin.Context) {
	m.save(c, m.newRecord(), events.Created)
}

func (m *modelAdmin[T, P]) change(c *gin.Context) {
	obj, ok := m.load(c.Request.Context(), c)
	if !ok {
		return
	}
	m.save(c, obj, events.Updated)
}

func readPayload(c *gin.Context) (map[string]json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	payload := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
			return nil, false
		}
	}
	return payload, true
}

func (m *modelAdmin[T, P]) save(c *gin.Context, obj *T, action string) {
	ctx := c.Request.Context()
	payload, ok := readPayload(c)
	if !ok {
		return
	}

	errs := Errors{}
	inlineIDs := map[string][]uint{}
	for key, raw := range payload {
		if in, ok := m.inlines[key]; ok {
			var ids []uint
			if err := json.Unmarshal(raw, &ids); err != nil {
				errs.Add(key, "Enter a list of ids.")
				continue
			}
			if msg := in.check(ctx, m.site.db, ids); msg != "" {
				errs.Add(key, msg)
				continue
			}
			inlineIDs[key] = ids
			continue
		}
		m.setField(obj, key, raw, errs, m.writable)
	}
	if len(errs) == 0 {
		m.clean(ctx, obj, errs)
	}
	if len(errs) > 0 {
		m.renderForm(c, http.StatusBadRequest, obj, errs)
		return
	}

	err := m.site.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.write(tx, obj, action); err != nil {
			return err
		}
		for _, in := range m.cfg.Inlines {
			if ids, ok := inlineIDs[in.Name()]; ok {
				if err := in.replace(tx, P(obj), ids); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if saveErrors(err, errs) {
			m.renderForm(c, http.StatusBadRequest, obj, errs)
			return
		}
		serverError(c, err)
		return
	}

	monitoring.AdminActions.WithLabelValues(m.cfg.Name, action).Inc()
	m.site.changed(ctx, m.cfg.Name, action, P(obj).PrimaryKey(), obj)
	c.Redirect(http.StatusSeeOther, m.info.URL)
}

func (m *modelAdmin[T, P]) write(tx *gorm.DB, obj *T, action string) error {
	if action == events.Created {
		return tx.Omit(clause.Associations).Create(obj).Error
	}
	return tx.Omit(clause.Associations).Save(obj).Error
}

// setField decodes one JSON value into the field it names.
func (m *modelAdmin[T, P]) setField(obj *T, key string, raw json.RawMessage, errs Errors, allowed func(*schema.Field) bool) {
	f, ok := m.byName[key]
	if !ok {
		errs.Add(key, "Unknown field.")
		return
	}
	if !allowed(f) {
		errs.Add(key, "This field cannot be changed.")
		return
	}

	jsonName := strings.SplitN(f.StructField.Tag.Get("json"), ",", 2)[0]
	if jsonName == "" {
		jsonName = f.Name
	}
	single, err := json.Marshal(map[string]json.RawMessage{jsonName: raw})
	if err == nil {
		err = json.Unmarshal(single, obj)
	}
	if err != nil {
		errs.Add(key, "Enter a valid value.")
	}
}

// clean runs the binding tags, the model's own checks and a lookup of
// every foreign key.
func (m *modelAdmin[T, P]) clean(ctx context.Context, obj *T, errs Errors) {
	if err := m.site.validate.StructCtx(ctx, obj); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs.Add("__all__", err.Error())
			return
		}
		for _, fe := range verrs {
			errs.Add(fe.Field(), fieldMessage(fe))
		}
	}

	if m.cfg.Clean != nil {
		for field, msgs := range m.cfg.Clean(obj) {
			for _, msg := range msgs {
				errs.Add(field, msg)
			}
		}
	}

	rv := reflect.ValueOf(obj).Elem()
	for _, rel := range m.schema.Relationships.Relations {
		if rel.Type != schema.BelongsTo {
			continue
		}
		fk := rel.References[0].ForeignKey
		value, zero := fk.ValueOf(ctx, rv)
		if zero {
			continue
		}
		var n int64
		if err := m.site.db.WithContext(ctx).Table(rel.FieldSchema.Table).
			Where(clause.Eq{Column: clause.Column{Name: rel.References[0].PrimaryKey.DBName}, Value: value}).
			Count(&n).Error; err != nil {
			errs.Add("__all__", err.Error())
			continue
		}
		if n == 0 {
			errs.Add(fk.DBName, "Select a valid choice. That choice is not one of the available choices.")
		}
	}
}

// saveErrors moves model validation failures raised by hooks into errs.
func saveErrors(err error, errs Errors) bool {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		errs.Add(verr.Field, verr.Message)
		return true
	}
	return false
}

func (m *modelAdmin[T, P]) remove(c *gin.Context) {
	ctx := c.Request.Context()
	obj, ok := m.load(ctx, c)
	if !ok {
		return
	}
	id := P(obj).PrimaryKey()
	if err := m.site.db.WithContext(ctx).Delete(obj).Error; err != nil {
		serverError(c, err)
		return
	}
	monitoring.AdminActions.WithLabelValues(m.cfg.Name, events.Deleted).Inc()
	m.site.changed(ctx, m.cfg.Name, events.Deleted, id, obj)
	c.Redirect(http.StatusSeeOther, m.info.URL)
}

// bulkEdit saves list_editable changes for several rows at once. Either
// every row is saved or none.
func (m *modelAdmin[T, P]) bulkEdit(c *gin.Context) {
	ctx := c.Request.Context()
	payload, ok := readPayload(c)
	if !ok {
		return
	}

	editable := func(f *schema.Field) bool { return contains(m.cfg.ListEditable, f.DBName) }
	objs := make([]*T, 0, len(payload))
	allErrs := map[string]Errors{}
	for key, raw := range payload {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid id %q", key)})
			return
		}
		var values map[string]json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("row %s must be a JSON object", key)})
			return
		}

		obj := new(T)
		if err := m.site.db.WithContext(ctx).First(obj, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s %d not found", m.cfg.VerboseName, id)})
				return
			}
			serverError(c, err)
			return
		}

		errs := Errors{}
		for field, value := range values {
			m.setField(obj, field, value, errs, editable)
		}
		if len(errs) == 0 {
			m.clean(ctx, obj, errs)
		}
		if len(errs) > 0 {
			allErrs[key] = errs
			continue
		}
		objs = append(objs, obj)
	}
	if len(allErrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": allErrs})
		return
	}

	err := m.site.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, obj := range objs {
			if err := m.write(tx, obj, events.Updated); err != nil {
				return fmt.Errorf("%s %d: %w", m.cfg.VerboseName, P(obj).PrimaryKey(), err)
			}
		}
		return nil
	})
	if err != nil {
		errs := Errors{}
		if saveErrors(err, errs) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		serverError(c, err)
		return
	}

	for _, obj := range objs {
		m.site.changed(ctx, m.cfg.Name, events.Updated, P(obj).PrimaryKey(), obj)
	}
	monitoring.AdminActions.WithLabelValues(m.cfg.Name, "bulk_edit").Inc()
	log.Printf("admin: %d %s updated from the change list", len(objs), m.cfg.VerboseNamePlural)
	c.JSON(http.StatusOK, gin.H{"updated": len(objs)})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

func serverError(c *gin.Context, err error) {
	log.Printf("admin: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
