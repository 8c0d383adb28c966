// Package admin generates the administrative API from the gorm model
// definitions: change lists with filters and search, add and change forms,
// many-to-many inlines and bulk actions.
package admin

import (
	"context"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"vetclinic/events"
	"vetclinic/utils"
)

const DefaultPerPage = 100

type Options struct {
	Location *time.Location
	PerPage  int
	Cache    *utils.PageCache
	Events   *events.Publisher
}

// Site holds every registered model admin.
type Site struct {
	db       *gorm.DB
	opts     Options
	validate *validator.Validate
	apps     map[string][]entry
	entries  map[string]entry
}

// entry is the type-erased view of a registered ModelAdmin.
type entry interface {
	meta() ModelInfo
	count(ctx context.Context) (int64, error)
	changelist(c *gin.Context)
	bulkEdit(c *gin.Context)
	runAction(c *gin.Context)
	addForm(c *gin.Context)
	add(c *gin.Context)
	changeForm(c *gin.Context)
	change(c *gin.Context)
	remove(c *gin.Context)
}

type ModelInfo struct {
	App               string `json:"app"`
	Name              string `json:"name"`
	VerboseName       string `json:"verbose_name"`
	VerboseNamePlural string `json:"verbose_name_plural"`
	URL               string `json:"url"`
}

func NewSite(db *gorm.DB, opts Options) *Site {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}

	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Site{
		db:       db,
		opts:     opts,
		validate: v,
		apps:     map[string][]entry{},
		entries:  map[string]entry{},
	}
}

func (s *Site) today() time.Time {
	return time.Now().In(s.opts.Location)
}

func (s *Site) add(e entry) {
	m := e.meta()
	s.apps[m.App] = append(s.apps[m.App], e)
	s.entries[m.App+"/"+m.Name] = e
}

// Mount registers the admin routes under /admin on r.
func (s *Site) Mount(r gin.IRouter) {
	g := r.Group("/admin")
	g.GET("/", s.index)
	g.GET("/:app/:model/", s.dispatch(entry.changelist))
	g.POST("/:app/:model/", s.dispatch(entry.bulkEdit))
	g.POST("/:app/:model/action/", s.dispatch(entry.runAction))
	g.GET("/:app/:model/add/", s.dispatch(entry.addForm))
	g.POST("/:app/:model/add/", s.dispatch(entry.add))
	g.GET("/:app/:model/:id/change/", s.dispatch(entry.changeForm))
	g.POST("/:app/:model/:id/change/", s.dispatch(entry.change))
	g.POST("/:app/:model/:id/delete/", s.dispatch(entry.remove))
}

func (s *Site) dispatch(h func(entry, *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.entries[c.Param("app")+"/"+c.Param("model")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
			return
		}
		h(e, c)
	}
}

type appIndex struct {
	Name   string       `json:"name"`
	Models []modelIndex `json:"models"`
}

type modelIndex struct {
	ModelInfo
	Count  int64  `json:"count"`
	AddURL string `json:"add_url"`
}

func (s *Site) index(c *gin.Context) {
	names := make([]string, 0, len(s.apps))
	for name := range s.apps {
		names = append(names, name)
	}
	sort.Strings(names)

	apps := make([]appIndex, 0, len(names))
	for _, name := range names {
		app := appIndex{Name: name}
		for _, e := range s.apps[name] {
			n, err := e.count(c.Request.Context())
			if err != nil {
				serverError(c, err)
				return
			}
			m := e.meta()
			app.Models = append(app.Models, modelIndex{ModelInfo: m, Count: n, AddURL: m.URL + "add/"})
		}
		sort.Slice(app.Models, func(i, j int) bool { return app.Models[i].Name < app.Models[j].Name })
		apps = append(apps, app)
	}
	c.JSON(http.StatusOK, gin.H{"apps": apps})
}

// changed runs after every admin write.
func (s *Site) changed(ctx context.Context, model, action string, id uint, data interface{}) {
	s.opts.Cache.InvalidateHome(ctx)
	s.opts.Events.PublishAsync(action, model, id, data)
}
