// Package category validates and applies writes to the catalog's category
// hierarchy: name validity and case-insensitive uniqueness, parent
// existence, the catalog-size ceiling, and cycle-free reparenting.
package category

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
	"github.com/xenking/catalog-engine/internal/domain/rules"
)

// Guard gates category creates and updates behind the rule pipeline.
type Guard struct {
	categories Repository
}

// NewGuard creates a Guard over the given category repository.
func NewGuard(categories Repository) *Guard {
	return &Guard{categories: categories}
}

// CreateInput carries the fields of a new category.
type CreateInput struct {
	Name        string
	Description string
	SortOrder   int
	ParentID    *int64
}

// UpdateInput carries the replacement fields of an existing category.
type UpdateInput struct {
	Name        string
	Description string
	SortOrder   int
	ParentID    *int64
	Active      bool
}

// Create validates and persists a new category. The catalog-wide ceiling is
// only enforced here, never on update.
func (g *Guard) Create(ctx context.Context, in CreateInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)

	if err := rules.Run(g.syncRules(name, in.SortOrder, in.ParentID)...); err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx,
		g.parentExists(in.ParentID),
		g.nameUnique(name, 0),
		g.belowCeiling(),
	); err != nil {
		return nil, err
	}

	c := &Category{
		Name:        name,
		Description: in.Description,
		SortOrder:   in.SortOrder,
		ParentID:    in.ParentID,
		Active:      true,
	}
	if err := g.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

// Update validates and persists replacement fields for the category.
// Reparenting a category under itself or one of its own descendants is
// rejected, since that would detach the subtree into a cycle.
func (g *Guard) Update(ctx context.Context, id int64, in UpdateInput) (*Category, error) {
	c, err := g.categories.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, catalogerr.NotFound("category", id)
		}
		return nil, errors.Wrapf(err, "load category %d", id)
	}

	name := strings.TrimSpace(in.Name)

	if err := rules.Run(g.syncRules(name, in.SortOrder, in.ParentID)...); err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx,
		g.parentExists(in.ParentID),
		g.nameUnique(name, id),
		g.acyclic(id, in.ParentID),
	); err != nil {
		return nil, err
	}

	c.Name = name
	c.Description = in.Description
	c.SortOrder = in.SortOrder
	c.ParentID = in.ParentID
	c.Active = in.Active
	if err := g.categories.Update(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "update category %d", id)
	}
	return c, nil
}

// Exists returns nil when the category exists, a NotFoundError when it does
// not, and the underlying fault otherwise. Used by collaborators that only
// need to validate a category reference.
func (g *Guard) Exists(ctx context.Context, id int64) error {
	_, err := g.categories.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return catalogerr.NotFound("category", id)
		}
		return errors.Wrapf(err, "load category %d", id)
	}
	return nil
}

func (g *Guard) syncRules(name string, sortOrder int, parentID *int64) []rules.Rule {
	rs := []rules.Rule{
		rules.MinLen("category name", name, 2),
		rules.NonNegative("sort order", sortOrder),
	}
	if parentID != nil {
		rs = append(rs, rules.NonNegative("parent category id", int(*parentID)))
	}
	return rs
}

func (g *Guard) parentExists(parentID *int64) rules.LookupRule {
	return func(ctx context.Context) error {
		if parentID == nil {
			return nil
		}
		_, err := g.categories.Get(ctx, *parentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return catalogerr.NotFound("parent category", *parentID)
			}
			return errors.Wrapf(err, "load parent category %d", *parentID)
		}
		return nil
	}
}

func (g *Guard) nameUnique(name string, excludeID int64) rules.LookupRule {
	return func(ctx context.Context) error {
		taken, err := g.categories.ExistsByName(ctx, name, excludeID)
		if err != nil {
			return errors.Wrapf(err, "check category name %q", name)
		}
		if taken {
			return catalogerr.Conflictf("a category named %q already exists", name)
		}
		return nil
	}
}

func (g *Guard) belowCeiling() rules.LookupRule {
	return func(ctx context.Context) error {
		count, err := g.categories.Count(ctx)
		if err != nil {
			return errors.Wrap(err, "count categories")
		}
		if count >= MaxCategories {
			return catalogerr.Capacityf("the catalog holds at most %d categories", MaxCategories)
		}
		return nil
	}
}

// acyclic walks the parent chain starting at the proposed parent. Hitting
// the category being updated means the new parent sits inside its own
// subtree. The walk is bounded by the catalog ceiling so pre-existing
// corrupt chains cannot loop forever.
func (g *Guard) acyclic(id int64, parentID *int64) rules.LookupRule {
	return func(ctx context.Context) error {
		current := parentID
		for steps := 0; current != nil && steps < MaxCategories; steps++ {
			if *current == id {
				return catalogerr.Conflictf("category %d cannot be nested under its own descendant", id)
			}
			ancestor, err := g.categories.Get(ctx, *current)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					// parentExists already validated the direct parent;
					// a broken chain higher up is not this write's fault.
					return nil
				}
				return errors.Wrapf(err, "load ancestor category %d", *current)
			}
			current = ancestor.ParentID
		}
		return nil
	}
}
