package merge

import (
	"context"
	"fmt"

	"github.com/eykd/csprocessor-go/internal/csnode"
)

// Summary counts the provider writes made by Apply.
type Summary struct {
	Created  int
	Updated  int
	Relinked int
	Deleted  int
}

// Apply hands r to provider: additions are created parent-first, then every
// node whose fields or sibling links changed is written once, then removals
// are deleted deepest-first. Created nodes receive their new ids in place, so
// the identity map that produced r stays valid for the next merge.
func Apply(ctx context.Context, provider csnode.Provider, r *Result) (Summary, error) {
	var sum Summary

	for _, n := range r.Added {
		if n.Parent != nil {
			if n.Parent.ID == "" {
				return sum, fmt.Errorf("create %s %q: parent has not been created", n.Type, n.Title)
			}
			n.ParentID = n.Parent.ID
		}
		created, err := provider.Create(ctx, n)
		if err != nil {
			return sum, fmt.Errorf("create %s %q: %w", n.Type, n.Title, err)
		}
		n.ID = created.ID
		sum.Created++
	}

	added := make(map[*csnode.Node]bool, len(r.Added))
	for _, n := range r.Added {
		added[n] = true
	}

	dirty := make(map[*csnode.Node]bool)
	var order []*csnode.Node
	markDirty := func(n *csnode.Node) {
		if !dirty[n] {
			dirty[n] = true
			order = append(order, n)
		}
	}

	for _, u := range r.Updated {
		if u.Node.Parent != nil {
			u.Node.ParentID = u.Node.Parent.ID
		}
		markDirty(u.Node)
		sum.Updated++
	}

	for _, scope := range r.Scopes {
		for i, n := range scope.Children {
			prev, next := "", ""
			if i > 0 {
				prev = scope.Children[i-1].ID
			}
			if i < len(scope.Children)-1 {
				next = scope.Children[i+1].ID
			}
			if n.PreviousID == prev && n.NextID == next {
				continue
			}
			n.PreviousID, n.NextID = prev, next
			if !added[n] && !dirty[n] {
				sum.Relinked++
			}
			markDirty(n)
		}
	}

	for _, n := range order {
		if err := provider.Update(ctx, n); err != nil {
			return sum, fmt.Errorf("update node %s: %w", n.ID, err)
		}
	}

	for i := len(r.Removed) - 1; i >= 0; i-- {
		n := r.Removed[i]
		if err := provider.Delete(ctx, n.ID); err != nil {
			return sum, fmt.Errorf("delete node %s: %w", n.ID, err)
		}
		sum.Deleted++
	}

	return sum, nil
}
