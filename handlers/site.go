package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vetclinic/models"
	"vetclinic/monitoring"
	"vetclinic/utils"
)

const (
	homePromotions = 3
	homeFeatured   = 4
	homeTopDoctors = 3
	homeReviews    = 5
)

// ServiceSearcher finds ids of active services matching a query outside
// the database.
type ServiceSearcher interface {
	SearchIDs(ctx context.Context, query string) ([]uint, error)
}

type SiteOptions struct {
	Location *time.Location
	// IncludeUnapproved ranks doctors over every review instead of
	// approved ones only.
	IncludeUnapproved bool
}

type SiteHandler struct {
	repo     models.Repository
	cache    *utils.PageCache
	searcher ServiceSearcher
	opts     SiteOptions
	now      func() time.Time
}

func NewSiteHandler(repo models.Repository, cache *utils.PageCache, searcher ServiceSearcher, opts SiteOptions) *SiteHandler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &SiteHandler{
		repo:     repo,
		cache:    cache,
		searcher: searcher,
		opts:     opts,
		now:      time.Now,
	}
}

type HomeContext struct {
	ActivePromotions  []models.Promotion    `json:"active_promotions"`
	FeaturedDoctors   []models.Doctor       `json:"featured_doctors"`
	Reviews           []models.Review       `json:"reviews"`
	Services          []models.Service      `json:"services"`
	SearchQuery       string                `json:"search_query"`
	DoctorsWithRating []models.DoctorRating `json:"doctors_with_rating"`
}

type SearchContext struct {
	SearchQuery  string           `json:"search_query"`
	Services     []models.Service `json:"services"`
	ResultsCount int              `json:"results_count"`
}

func (h *SiteHandler) today() models.Date {
	return models.DateOf(h.now().In(h.opts.Location))
}

// Home serves the landing page context. Without a search query the context
// is cached per calendar day.
func (h *SiteHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	query, hasQuery := c.GetQuery("q")
	today := h.today()

	key := utils.HomePageKey(today.String())
	if !hasQuery {
		if cached, ok := h.cache.Get(ctx, key); ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	home, err := h.homeContext(ctx, today, query)
	if err != nil {
		serverError(c, err)
		return
	}

	body, err := json.Marshal(home)
	if err != nil {
		serverError(c, err)
		return
	}
	if !hasQuery {
		h.cache.Set(ctx, key, string(body))
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *SiteHandler) homeContext(ctx context.Context, today models.Date, query string) (*HomeContext, error) {
	promotions, err := h.repo.ActivePromotions(ctx, today, homePromotions)
	if err != nil {
		return nil, err
	}
	featured, err := h.repo.FeaturedDoctors(ctx, homeFeatured)
	if err != nil {
		return nil, err
	}
	reviews, err := h.repo.RecentApprovedReviews(ctx, homeReviews)
	if err != nil {
		return nil, err
	}
	services, err := h.repo.SearchServices(ctx, query)
	if err != nil {
		return nil, err
	}
	rated, err := h.repo.TopRatedDoctors(ctx, homeTopDoctors, h.opts.IncludeUnapproved)
	if err != nil {
		return nil, err
	}

	return &HomeContext{
		ActivePromotions:  nonNil(promotions),
		FeaturedDoctors:   nonNil(featured),
		Reviews:           nonNil(reviews),
		Services:          nonNil(services),
		SearchQuery:       query,
		DoctorsWithRating: nonNil(rated),
	}, nil
}

// Search lists active services matching q. The search index answers when
// available and its ids are re-checked against the database, so a stale
// index can only miss services. Any index failure falls back to the
// database.
func (h *SiteHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("q")

	services, err := h.searchServices(ctx, query)
	if err != nil {
		serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchContext{
		SearchQuery:  query,
		Services:     services,
		ResultsCount: len(services),
	})
}

func (h *SiteHandler) searchServices(ctx context.Context, query string) ([]models.Service, error) {
	// An empty query lists every active service; only the database knows
	// that set exactly.
	if h.searcher != nil && query != "" {
		ids, err := h.searcher.SearchIDs(ctx, query)
		if err == nil {
			monitoring.SearchQueries.WithLabelValues("elasticsearch").Inc()
			return h.repo.ServicesByIDs(ctx, ids, query)
		}
		log.Printf("Search index did not answer, falling back to database: %v", err)
	}

	monitoring.SearchQueries.WithLabelValues("database").Inc()
	services, err := h.repo.SearchServices(ctx, query)
	if err != nil {
		return nil, err
	}
	return nonNil(services), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
