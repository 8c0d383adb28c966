// Package search keeps the Elasticsearch index of clinic services in step
// with the database and queries it for the public search page.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vetclinic/models"
	"vetclinic/utils"
)

const maxResults = 1000

// ErrTooManyHits is returned by SearchIDs when the match set does not fit
// in one page; callers should answer from the database instead.
var ErrTooManyHits = errors.New("search: too many hits for one page")

type ServiceDocument struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsActive    bool   `json:"is_active"`
}

func NewServiceDocument(s models.Service) ServiceDocument {
	return ServiceDocument{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price.StringFixed(2),
		IsActive:    s.IsActive,
	}
}

// Wildcard fields keep the whole value of any length, so a wildcard query
// behaves like a substring match.
var serviceMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":          map[string]interface{}{"type": "long"},
			"name":        map[string]interface{}{"type": "wildcard"},
			"description": map[string]interface{}{"type": "wildcard"},
			"price":       map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
			"is_active":   map[string]interface{}{"type": "boolean"},
		},
	},
}

type ServiceIndex struct {
	es    utils.ElasticsearchClient
	index string
}

func NewServiceIndex(es utils.ElasticsearchClient, index string) *ServiceIndex {
	return &ServiceIndex{es: es, index: index}
}

func (s *ServiceIndex) Ensure(ctx context.Context) error {
	return s.es.EnsureIndex(ctx, s.index, serviceMapping)
}

func (s *ServiceIndex) Put(ctx context.Context, service models.Service) error {
	return s.es.IndexDocument(ctx, s.index, docID(service.ID), NewServiceDocument(service))
}

func (s *ServiceIndex) Remove(ctx context.Context, id uint) error {
	return s.es.DeleteDocument(ctx, s.index, docID(id))
}

// Reindex writes every service to the index and returns how many were
// written before the first failure.
func (s *ServiceIndex) Reindex(ctx context.Context, services []models.Service) (int, error) {
	if err := s.Ensure(ctx); err != nil {
		return 0, err
	}
	for i, service := range services {
		if err := s.Put(ctx, service); err != nil {
			return i, fmt.Errorf("failed to index service %d: %w", service.ID, err)
		}
	}
	return len(services), nil
}

// SearchIDs returns the ids of active services whose name or description
// contains query, ignoring case. More than maxResults matches yield
// ErrTooManyHits.
func (s *ServiceIndex) SearchIDs(ctx context.Context, query string) ([]uint, error) {
	hits, err := s.es.Search(ctx, s.index, ServiceQuery(query))
	if err != nil {
		return nil, err
	}
	if len(hits) > maxResults {
		return nil, ErrTooManyHits
	}
	ids := make([]uint, 0, len(hits))
	for _, hit := range hits {
		raw, ok := hit["id"].(float64)
		if !ok || raw <= 0 {
			continue
		}
		ids = append(ids, uint(raw))
	}
	return ids, nil
}

// ServiceQuery builds the Elasticsearch request body for SearchIDs.
func ServiceQuery(query string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"filter": []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"is_active": true}},
		},
	}
	if query != "" {
		pattern := "*" + escapeWildcard(query) + "*"
		boolQuery["should"] = []interface{}{
			wildcard("name", pattern),
			wildcard("description", pattern),
		}
		boolQuery["minimum_should_match"] = 1
	}
	return map[string]interface{}{
		"size":    maxResults + 1,
		"_source": []string{"id"},
		"sort":    []interface{}{map[string]interface{}{"id": "asc"}},
		"query":   map[string]interface{}{"bool": boolQuery},
	}
}

func wildcard(field, pattern string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{"value": pattern, "case_insensitive": true},
		},
	}
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
