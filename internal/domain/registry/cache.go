package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedCatalog serves catalog lookups from an LRU in front of a
// ServiceRepository. Misses and errors fall through to the repository;
// only successful lookups are cached.
type CachedCatalog struct {
	repo  ServiceRepository
	cache *lru.Cache[string, *MedicalService]
}

func NewCachedCatalog(repo ServiceRepository, size int) (*CachedCatalog, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, *MedicalService](size)
	if err != nil {
		return nil, err
	}
	return &CachedCatalog{repo: repo, cache: c}, nil
}

func (c *CachedCatalog) GetByID(ctx context.Context, id string) (*MedicalService, error) {
	if s, ok := c.cache.Get(id); ok {
		cp := *s
		return &cp, nil
	}
	s, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, s)
	cp := *s
	return &cp, nil
}

// List always reads through; listings are rare and must reflect price edits.
func (c *CachedCatalog) List(ctx context.Context, serviceType string) ([]*MedicalService, error) {
	return c.repo.List(ctx, serviceType)
}

// Invalidate drops one entry, or the whole cache when id is empty.
func (c *CachedCatalog) Invalidate(id string) {
	if id == "" {
		c.cache.Purge()
		return
	}
	c.cache.Remove(id)
}

func (c *CachedCatalog) Len() int {
	return c.cache.Len()
}
