package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/redis"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

// Source is the commerce read surface behind the catalog.
type Source interface {
	ListCategories(ctx context.Context, includePackages bool) ([]tebex.Category, error)
	GetPackage(ctx context.Context, id int) (*tebex.Package, error)
}

// Service serves catalog reads, caching them in redis when a cache is configured.
type Service struct {
	source Source
	cache  redis.KV
	ttl    time.Duration
	logg   *logger.Logger
}

// NewService builds a catalog service. A nil cache or non-positive ttl disables caching.
func NewService(source Source, cache redis.KV, ttl time.Duration, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	if ttl <= 0 {
		cache = nil
	}
	return &Service{source: source, cache: cache, ttl: ttl, logg: logg}
}

// Categories lists categories, optionally with their packages.
func (s *Service) Categories(ctx context.Context, includePackages bool) ([]tebex.Category, error) {
	key := s.key("categories", strconv.FormatBool(includePackages))

	var cached []tebex.Category
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	categories, err := s.source.ListCategories(ctx, includePackages)
	if err != nil {
		return nil, tebex.ToDomain(err)
	}
	s.store(ctx, key, categories)
	return categories, nil
}

// Package returns a single package.
func (s *Service) Package(ctx context.Context, id int) (*tebex.Package, error) {
	key := s.key("package", strconv.Itoa(id))

	var cached tebex.Package
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	pkg, err := s.source.GetPackage(ctx, id)
	if err != nil {
		return nil, tebex.ToDomain(err)
	}
	s.store(ctx, key, pkg)
	return pkg, nil
}

func (s *Service) key(parts ...string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CatalogKey(parts...)
}

func (s *Service) lookup(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "catalog cache read failed: "+err.Error())
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "discarding unreadable catalog cache entry")
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "catalog cache write failed: "+err.Error())
	}
}
