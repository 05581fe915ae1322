package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SeedNode is one group in the bootstrap hierarchy. Every seeded group also
// gets a legal entity of the same name so the browse view always has an
// org-kind row to show.
type SeedNode struct {
	Name     string
	Children []SeedNode
}

// DefaultHierarchy is the static organizational structure seeded at startup.
// It can grow over time; seeding is idempotent by name.
var DefaultHierarchy = []SeedNode{
	{
		Name: "District Administration",
		Children: []SeedNode{
			{Name: "Nagorsk Settlement"},
			{Name: "Cheglakovo Settlement"},
		},
	},
	{
		Name: "Education Department",
		Children: []SeedNode{
			{Name: "Mulino School"},
		},
	},
	{
		Name: "Culture Department",
		Children: []SeedNode{
			{Name: "Folk Arts Center"},
			{Name: "Library Network"},
		},
	},
}

// Seed upserts the given hierarchy into the store. Safe to run on every
// start: existing groups are reparented if moved, existing entities are left
// in place.
func Seed(ctx context.Context, store Store, nodes []SeedNode) error {
	return seedLevel(ctx, store, nodes, nil)
}

func seedLevel(ctx context.Context, store Store, nodes []SeedNode, parentID *uuid.UUID) error {
	for _, node := range nodes {
		groupID, err := store.UpsertGroup(ctx, node.Name, parentID)
		if err != nil {
			return fmt.Errorf("seed group %q: %w", node.Name, err)
		}
		if _, err := store.EnsureOrgEntity(ctx, groupID, node.Name); err != nil {
			return fmt.Errorf("seed legal entity %q: %w", node.Name, err)
		}
		if len(node.Children) > 0 {
			gid := groupID
			if err := seedLevel(ctx, store, node.Children, &gid); err != nil {
				return err
			}
		}
	}
	return nil
}
