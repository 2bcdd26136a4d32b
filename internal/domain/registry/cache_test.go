package registry

import (
	"context"
	"testing"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestCachedCatalog_HitsRepositoryOnce(t *testing.T) {
	repo := &mockServiceRepo{store: map[string]*MedicalService{
		"xray": {ID: "xray", Name: "Chest X-Ray", ServiceType: ServiceTypeImaging, Price: 200000},
	}}
	c, err := NewCachedCatalog(repo, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		s, err := c.GetByID(context.Background(), "xray")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Price != 200000 {
			t.Errorf("unexpected price %v", s.Price)
		}
	}
	if repo.calls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.calls)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", c.Len())
	}
}

func TestCachedCatalog_ReturnsCopies(t *testing.T) {
	repo := &mockServiceRepo{store: map[string]*MedicalService{
		"xray": {ID: "xray", Price: 200000},
	}}
	c, _ := NewCachedCatalog(repo, 8)

	first, _ := c.GetByID(context.Background(), "xray")
	first.Price = 1
	second, _ := c.GetByID(context.Background(), "xray")
	if second.Price != 200000 {
		t.Errorf("cached entry was mutated through a returned value: %v", second.Price)
	}
}

func TestCachedCatalog_MissesAreNotCached(t *testing.T) {
	repo := &mockServiceRepo{store: map[string]*MedicalService{}}
	c, _ := NewCachedCatalog(repo, 8)

	for i := 0; i < 2; i++ {
		if _, err := c.GetByID(context.Background(), "nope"); !apperr.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if repo.calls != 2 {
		t.Errorf("expected misses to reach the repository, got %d calls", repo.calls)
	}
}

func TestCachedCatalog_Invalidate(t *testing.T) {
	repo := &mockServiceRepo{store: map[string]*MedicalService{
		"xray":  {ID: "xray", Price: 200000},
		"blood": {ID: "blood", Price: 80000},
	}}
	c, _ := NewCachedCatalog(repo, 8)
	c.GetByID(context.Background(), "xray")
	c.GetByID(context.Background(), "blood")

	c.Invalidate("xray")
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after single invalidation, got %d", c.Len())
	}
	c.Invalidate("")
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestCachedCatalog_Eviction(t *testing.T) {
	repo := &mockServiceRepo{store: map[string]*MedicalService{
		"a": {ID: "a"}, "b": {ID: "b"}, "c": {ID: "c"},
	}}
	c, _ := NewCachedCatalog(repo, 2)
	for _, id := range []string{"a", "b", "c"} {
		c.GetByID(context.Background(), id)
	}
	if c.Len() != 2 {
		t.Errorf("expected cache bounded at 2, got %d", c.Len())
	}
}
