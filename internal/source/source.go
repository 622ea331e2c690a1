// Package source provides recipe candidate sources and the service that
// aggregates them. Each source adapts its native format into the canonical
// recipe model; the service fans out to every registered source, tolerates
// individual failures, and caches retrieval results.
package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"meal-scheduler/internal/cache"
	"meal-scheduler/internal/recipe"
)

// ErrAllSourcesFailed is returned when every registered source fails, so the
// caller can distinguish "no matches" from "nothing reachable".
var ErrAllSourcesFailed = errors.New("all candidate sources failed")

// Filters are the hard constraints a source must apply before returning
// candidates. Soft preferences are not a source concern; the scorer handles
// those.
type Filters struct {
	Diets    []string
	Exclude  []string
	MealType string
}

// CandidateSource fetches recipes satisfying the filters from one backend.
type CandidateSource interface {
	Name() string
	GetCandidates(ctx context.Context, filters Filters) ([]recipe.Recipe, error)
}

// Service aggregates candidates across sources.
type Service struct {
	sources []CandidateSource
	cache   *cache.Store[[]recipe.Recipe]
	ttl     time.Duration
}

// NewService creates a Service over the given sources. A non-positive ttl
// disables the retrieval cache.
func NewService(sources []CandidateSource, ttl time.Duration) *Service {
	return &Service{
		sources: sources,
		cache:   cache.New[[]recipe.Recipe](),
		ttl:     ttl,
	}
}

// GetCandidates fetches from every source whose name is in allowed (or from
// all sources when allowed is empty) and merges the results. A failing source
// is logged and skipped; the error is non-nil only when every consulted
// source failed.
func (s *Service) GetCandidates(ctx context.Context, filters Filters, allowed []string) ([]recipe.Recipe, error) {
	key := cacheKey(filters, allowed)
	if s.ttl > 0 {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	var merged []recipe.Recipe
	consulted, failed := 0, 0
	for _, src := range s.sources {
		if !sourceAllowed(src.Name(), allowed) {
			continue
		}
		consulted++

		recipes, err := src.GetCandidates(ctx, filters)
		if err != nil {
			failed++
			log.Printf("source %s failed: %v", src.Name(), err)
			continue
		}
		merged = append(merged, recipes...)
	}

	if consulted > 0 && failed == consulted {
		return nil, fmt.Errorf("%w: %d sources consulted", ErrAllSourcesFailed, consulted)
	}

	if s.ttl > 0 {
		s.cache.Set(key, merged, s.ttl)
	}
	return merged, nil
}

func sourceAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// cacheKey builds a canonical key: list order in the filters must not change
// the key.
func cacheKey(filters Filters, allowed []string) string {
	diets := sortedCopy(filters.Diets)
	exclude := sortedCopy(filters.Exclude)
	sources := sortedCopy(allowed)
	return strings.Join([]string{
		strings.Join(diets, ","),
		strings.Join(exclude, ","),
		strings.ToLower(filters.MealType),
		strings.Join(sources, ","),
	}, "|")
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	sort.Strings(out)
	return out
}
