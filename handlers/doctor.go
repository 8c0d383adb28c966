package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"vetclinic/events"
	"vetclinic/models"
	"vetclinic/monitoring"
	"vetclinic/utils"
)

const photoDir = "doctors"

type DoctorHandler struct {
	repo   models.Repository
	media  *utils.MediaStore
	cache  *utils.PageCache
	events *events.Publisher
}

func NewDoctorHandler(repo models.Repository, media *utils.MediaStore, cache *utils.PageCache, events *events.Publisher) *DoctorHandler {
	return &DoctorHandler{
		repo:   repo,
		media:  media,
		cache:  cache,
		events: events,
	}
}

type DoctorView struct {
	*models.Doctor
	PhotoURL string `json:"photo_url"`
}

type DoctorDetail struct {
	Doctor      DoctorView      `json:"doctor"`
	Reviews     []models.Review `json:"reviews"`
	AvgRating   *float64        `json:"avg_rating"`
	ReviewCount int             `json:"review_count"`
}

// FormContext describes a doctor form for the client to render.
type FormContext struct {
	Action          string                  `json:"action"`
	Values          DoctorForm              `json:"values"`
	Specializations []models.Specialization `json:"specialization_choices"`
	Doctor          *DoctorView             `json:"doctor,omitempty"`
}

func (h *DoctorHandler) view(d *models.Doctor) DoctorView {
	return DoctorView{Doctor: d, PhotoURL: h.media.URL(d.Photo)}
}

func doctorURL(id uint) string {
	return fmt.Sprintf("/doctor/%d/", id)
}

func (h *DoctorHandler) List(c *gin.Context) {
	doctors, err := h.repo.ListDoctors(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	views := make([]DoctorView, 0, len(doctors))
	for i := range doctors {
		views = append(views, h.view(&doctors[i]))
	}
	c.JSON(http.StatusOK, gin.H{"doctors": views})
}

func (h *DoctorHandler) Detail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		notFound(c, "doctor")
		return
	}
	ctx := c.Request.Context()

	doctor, err := h.repo.GetDoctor(ctx, id)
	if err != nil {
		respondLookupError(c, "doctor", err)
		return
	}
	reviews, err := h.repo.DoctorReviews(ctx, id, true)
	if err != nil {
		serverError(c, err)
		return
	}

	detail := DoctorDetail{
		Doctor:      h.view(doctor),
		Reviews:     nonNil(reviews),
		ReviewCount: len(reviews),
	}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		avg := float64(sum) / float64(len(reviews))
		detail.AvgRating = &avg
	}
	c.JSON(http.StatusOK, detail)
}

func (h *DoctorHandler) New(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "/doctor/new/", DoctorForm{}, nil, nil)
}

func (h *DoctorHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var form DoctorForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, errs, err := form.Validate(ctx, h.repo)
	if err != nil {
		serverError(c, err)
		return
	}
	photo, photoErr := h.savePhoto(c)
	if photoErr != "" {
		if errs == nil {
			errs = FieldErrors{}
		}
		errs.Add("photo", photoErr)
	}
	if len(errs) > 0 {
		h.discardPhoto(photo)
		monitoring.DoctorForms.WithLabelValues("create", "invalid").Inc()
		h.renderForm(c, http.StatusBadRequest, "/doctor/new/", form, nil, errs)
		return
	}

	doctor := &models.Doctor{Photo: photo}
	data.Apply(doctor)
	if err := h.repo.CreateDoctor(ctx, doctor, data.SpecializationIDs); err != nil {
		h.discardPhoto(photo)
		serverError(c, err)
		return
	}

	monitoring.DoctorForms.WithLabelValues("create", "saved").Inc()
	h.changed(ctx, events.Created, doctor)
	redirect(c, doctorURL(doctor.ID))
}

func (h *DoctorHandler) Edit(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		notFound(c, "doctor")
		return
	}
	doctor, err := h.repo.GetDoctor(c.Request.Context(), id)
	if err != nil {
		respondLookupError(c, "doctor", err)
		return
	}
	h.renderForm(c, http.StatusOK, doctorURL(id)+"edit/", DoctorFormFrom(doctor), doctor, nil)
}

func (h *DoctorHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		notFound(c, "doctor")
		return
	}
	ctx := c.Request.Context()

	doctor, err := h.repo.GetDoctor(ctx, id)
	if err != nil {
		respondLookupError(c, "doctor", err)
		return
	}

	var form DoctorForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, errs, err := form.Validate(ctx, h.repo)
	if err != nil {
		serverError(c, err)
		return
	}
	photo, photoErr := h.savePhoto(c)
	if photoErr != "" {
		if errs == nil {
			errs = FieldErrors{}
		}
		errs.Add("photo", photoErr)
	}
	if len(errs) > 0 {
		h.discardPhoto(photo)
		monitoring.DoctorForms.WithLabelValues("update", "invalid").Inc()
		h.renderForm(c, http.StatusBadRequest, doctorURL(id)+"edit/", form, doctor, errs)
		return
	}

	oldPhoto := doctor.Photo
	switch {
	case photo != "":
		doctor.Photo = photo
	case data.ClearPhoto:
		doctor.Photo = ""
	}
	data.Apply(doctor)

	if err := h.repo.UpdateDoctor(ctx, doctor, data.SpecializationIDs); err != nil {
		h.discardPhoto(photo)
		respondLookupError(c, "doctor", err)
		return
	}
	if oldPhoto != doctor.Photo {
		h.discardPhoto(oldPhoto)
	}

	monitoring.DoctorForms.WithLabelValues("update", "saved").Inc()
	h.changed(ctx, events.Updated, doctor)
	redirect(c, doctorURL(doctor.ID))
}

func (h *DoctorHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		notFound(c, "doctor")
		return
	}
	ctx := c.Request.Context()

	doctor, err := h.repo.GetDoctor(ctx, id)
	if err != nil {
		respondLookupError(c, "doctor", err)
		return
	}
	if err := h.repo.DeleteDoctor(ctx, id); err != nil {
		respondLookupError(c, "doctor", err)
		return
	}
	h.discardPhoto(doctor.Photo)

	monitoring.DoctorForms.WithLabelValues("delete", "saved").Inc()
	h.changed(ctx, events.Deleted, doctor)
	redirect(c, "/doctors/")
}

// savePhoto stores an uploaded photo, returning its path or a field error.
// No upload yields two empty strings.
func (h *DoctorHandler) savePhoto(c *gin.Context) (string, string) {
	fh, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", ""
		}
		return "", "The submitted data was not a file."
	}
	if fh.Size == 0 {
		return "", "The submitted file is empty."
	}
	name, err := h.media.SaveImage(fh, photoDir)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedImage) || errors.Is(err, utils.ErrImageTooLarge) {
			return "", err.Error()
		}
		log.Printf("Failed to store doctor photo: %v", err)
		return "", "The photo could not be saved."
	}
	return name, ""
}

func (h *DoctorHandler) discardPhoto(name string) {
	if err := h.media.Delete(name); err != nil {
		log.Printf("Failed to remove photo %s: %v", name, err)
	}
}

func (h *DoctorHandler) changed(ctx context.Context, action string, doctor *models.Doctor) {
	h.cache.InvalidateHome(ctx)
	h.events.PublishAsync(action, events.EntityDoctor, doctor.ID, doctor)
}

func (h *DoctorHandler) renderForm(c *gin.Context, status int, action string, form DoctorForm, doctor *models.Doctor, errs FieldErrors) {
	specs, err := h.repo.ListSpecializations(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	if form.Specializations == nil {
		form.Specializations = []string{}
	}
	fc := FormContext{
		Action:          action,
		Values:          form,
		Specializations: nonNil(specs),
	}
	if doctor != nil {
		v := h.view(doctor)
		fc.Doctor = &v
	}
	if errs != nil {
		c.JSON(status, gin.H{"form": fc, "errors": errs})
		return
	}
	c.JSON(status, gin.H{"form": fc})
}
