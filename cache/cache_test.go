package cache

import (
	"testing"

	"github.com/use-agent/gridsight/models"
)

func TestKeyGeometrySensitivity(t *testing.T) {
	base := func() *models.ExtractRequest {
		return &models.ExtractRequest{URL: "https://example.com/dashboard"}
	}

	k1 := Key(base())
	if k2 := Key(base()); k2 != k1 {
		t.Error("identical requests produced different keys")
	}

	// Fields that change the extraction output must change the key.
	variants := []func(*models.ExtractRequest){
		func(r *models.ExtractRequest) { r.URL = "https://example.com/other" },
		func(r *models.ExtractRequest) { r.MaxPasses = 10 },
		func(r *models.ExtractRequest) { r.DedupCellSize = 100 },
		func(r *models.ExtractRequest) { r.ClassifyCellSize = 300 },
		func(r *models.ExtractRequest) { r.RowBandHeight = 150 },
		func(r *models.ExtractRequest) { r.EnrichDetails = true },
		func(r *models.ExtractRequest) { r.SizeFilter = &models.SizeFilter{WMin: 5, WMax: 50, HMin: 5, HMax: 25} },
	}
	for i, mutate := range variants {
		r := base()
		mutate(r)
		if Key(r) == k1 {
			t.Errorf("variant %d did not change the cache key", i)
		}
	}

	// Fields that don't change the output must not change the key.
	r := base()
	r.Timeout = 300
	r.MaxAge = 60000
	if Key(r) != k1 {
		t.Error("timeout/cache policy changed the cache key")
	}
}

func TestGetSetAndMaxAge(t *testing.T) {
	c := New(10)
	key := "k"
	resp := &models.ExtractResponse{Success: true, Count: 3}

	if _, hit := c.Get(key, 60000); hit {
		t.Error("hit on empty cache")
	}

	c.Set(key, resp)

	got, hit := c.Get(key, 60000)
	if !hit {
		t.Fatal("miss immediately after Set")
	}
	if got.Count != 3 {
		t.Errorf("cached count = %d, want 3", got.Count)
	}

	// maxAge <= 0 disables lookup entirely.
	if _, hit := c.Get(key, 0); hit {
		t.Error("hit with maxAge 0")
	}
}

func TestSetEvictsAtCapacity(t *testing.T) {
	c := New(2)
	c.Set("a", &models.ExtractResponse{})
	c.Set("b", &models.ExtractResponse{})
	c.Set("c", &models.ExtractResponse{})

	hits := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, hit := c.Get(k, 60000); hit {
			hits++
		}
	}
	if hits != 2 {
		t.Errorf("%d entries cached after overflow, want capacity 2", hits)
	}
}
