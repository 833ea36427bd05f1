package domain

import "context"

// MaterialStatus describes whether a material may be referenced by new lines.
type MaterialStatus string

// Material master statuses. Only deprecated materials block use.
const (
	MaterialStatusActive     MaterialStatus = "ACTIVE"
	MaterialStatusInactive   MaterialStatus = "INACTIVE"
	MaterialStatusDeprecated MaterialStatus = "DEPRECATED"
)

// Material is the subset of the material master consumed by procurement.
type Material struct {
	Number      string         `json:"material_number"`
	Description string         `json:"description"`
	Unit        string         `json:"unit"`
	Status      MaterialStatus `json:"status"`
}

// Usable reports whether the material may be referenced on a document line.
func (m Material) Usable() bool {
	return m.Status != MaterialStatusDeprecated
}

// MaterialLookup resolves material numbers against the external catalog.
// Implementations return a NotFound *Error when the number is unknown.
type MaterialLookup interface {
	GetMaterial(ctx context.Context, number string) (Material, error)
}
