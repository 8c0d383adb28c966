package handlers

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"vetclinic/models"
)

// FieldErrors maps form field names to their validation messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DoctorForm is the submitted doctor form. Values are kept as strings so
// malformed input is reported per field instead of failing the bind.
type DoctorForm struct {
	FirstName       string   `form:"first_name" json:"first_name" validate:"required,max=100"`
	LastName        string   `form:"last_name" json:"last_name" validate:"required,max=100"`
	Specializations []string `form:"specializations" json:"specializations"`
	Experience      string   `form:"experience" json:"experience" validate:"required"`
	Description     string   `form:"description" json:"description"`
	IsFeatured      string   `form:"is_featured" json:"is_featured"`
	PhotoClear      string   `form:"photo-clear" json:"-"`
}

// DoctorData is a DoctorForm after successful validation.
type DoctorData struct {
	FirstName         string
	LastName          string
	Experience        uint
	Description       string
	IsFeatured        bool
	SpecializationIDs []uint
	ClearPhoto        bool
}

func DoctorFormFrom(d *models.Doctor) DoctorForm {
	specs := make([]string, 0, len(d.Specializations))
	for _, s := range d.Specializations {
		specs = append(specs, strconv.FormatUint(uint64(s.ID), 10))
	}
	form := DoctorForm{
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Specializations: specs,
		Experience:      strconv.FormatUint(uint64(d.Experience), 10),
		Description:     d.Description,
	}
	if d.IsFeatured {
		form.IsFeatured = "on"
	}
	return form
}

// Validate cleans the form and checks it field by field. Specialization
// ids are checked against the database.
func (f *DoctorForm) Validate(ctx context.Context, repo models.Repository) (DoctorData, FieldErrors, error) {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Experience = strings.TrimSpace(f.Experience)
	f.Description = strings.TrimSpace(f.Description)

	errs := FieldErrors{}
	if err := formValidator.Struct(f); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return DoctorData{}, nil, err
		}
		for _, fe := range verrs {
			errs.Add(fe.Field(), fieldMessage(fe))
		}
	}

	data := DoctorData{
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		Description: f.Description,
		IsFeatured:  checked(f.IsFeatured),
		ClearPhoto:  checked(f.PhotoClear),
	}

	if f.Experience != "" {
		n, err := strconv.ParseInt(f.Experience, 10, 64)
		switch {
		case err != nil:
			errs.Add("experience", "Enter a whole number.")
		case n < 0:
			errs.Add("experience", "Ensure this value is greater than or equal to 0.")
		case n > 1<<31-1:
			errs.Add("experience", "Ensure this value is less than or equal to 2147483647.")
		default:
			data.Experience = uint(n)
		}
	}

	ids, err := f.specializationIDs(ctx, repo, errs)
	if err != nil {
		return DoctorData{}, nil, err
	}
	data.SpecializationIDs = ids

	if len(errs) > 0 {
		return DoctorData{}, errs, nil
	}
	return data, nil, nil
}

func (f *DoctorForm) specializationIDs(ctx context.Context, repo models.Repository, errs FieldErrors) ([]uint, error) {
	ids := []uint{}
	seen := map[uint]bool{}
	for _, raw := range f.Specializations {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			errs.Add("specializations", fmt.Sprintf("%q is not a valid value.", raw))
			return nil, nil
		}
		if !seen[uint(id)] {
			seen[uint(id)] = true
			ids = append(ids, uint(id))
		}
	}
	if len(ids) == 0 {
		return ids, nil
	}

	n, err := repo.CountSpecializations(ctx, ids)
	if err != nil {
		return nil, err
	}
	if n != int64(len(ids)) {
		errs.Add("specializations", "Select a valid choice. One of the selected specializations is not one of the available choices.")
		return nil, nil
	}
	return ids, nil
}

func (d DoctorData) Apply(doctor *models.Doctor) {
	doctor.FirstName = d.FirstName
	doctor.LastName = d.LastName
	doctor.Experience = d.Experience
	doctor.Description = d.Description
	doctor.IsFeatured = d.IsFeatured
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
