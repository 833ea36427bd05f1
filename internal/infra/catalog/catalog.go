// Package catalog provides an in-process material master used by the CLI and
// tests in place of the external catalog service.
package catalog

import (
	"context"
	"sort"
	"sync"

	"procurecore/pkg/domain"
)

var _ domain.MaterialLookup = (*Static)(nil)

// Static is a concurrency-safe, map-backed MaterialLookup.
type Static struct {
	mu        sync.RWMutex
	materials map[string]domain.Material
}

// NewStatic returns a catalog seeded with materials.
func NewStatic(materials ...domain.Material) *Static {
	c := &Static{materials: make(map[string]domain.Material, len(materials))}
	for _, m := range materials {
		c.materials[m.Number] = m
	}
	return c
}

// GetMaterial implements domain.MaterialLookup.
func (c *Static) GetMaterial(ctx context.Context, number string) (domain.Material, error) {
	if err := ctx.Err(); err != nil {
		return domain.Material{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.materials[number]
	if !ok {
		return domain.Material{}, domain.NewNotFound(domain.EntityMaterial, number)
	}
	return m, nil
}

// Put adds or replaces a material.
func (c *Static) Put(m domain.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.materials[m.Number] = m
}

// SetStatus changes the status of an existing material and reports whether
// it was found.
func (c *Static) SetStatus(number string, status domain.MaterialStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.materials[number]
	if !ok {
		return false
	}
	m.Status = status
	c.materials[number] = m
	return true
}

// List returns every material ordered by number.
func (c *Static) List() []domain.Material {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Material, 0, len(c.materials))
	for _, m := range c.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Demo returns a small catalog covering every material status.
func Demo() *Static {
	return NewStatic(
		domain.Material{Number: "MAT-1000", Description: "Steel bolt M8", Unit: "EA", Status: domain.MaterialStatusActive},
		domain.Material{Number: "MAT-2000", Description: "Hydraulic oil 5L", Unit: "L", Status: domain.MaterialStatusActive},
		domain.Material{Number: "MAT-3000", Description: "Legacy gasket", Unit: "EA", Status: domain.MaterialStatusInactive},
		domain.Material{Number: "MAT-9000", Description: "Asbestos sheet", Unit: "M2", Status: domain.MaterialStatusDeprecated},
	)
}
