package member

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const managerCacheSize = 512

type managerLookup struct {
	id    string
	found bool
}

// DirectoryResolver classifies rows as create or update and resolves manager
// references. It never writes.
type DirectoryResolver struct {
	directory domain.DirectoryReader
}

func NewDirectoryResolver(directory domain.DirectoryReader) *DirectoryResolver {
	return &DirectoryResolver{directory: directory}
}

func (r *DirectoryResolver) Resolve(ctx context.Context, tenantID string, rows []domain.CandidateRow) error {
	managers, err := lru.New[domain.Identifier, managerLookup](managerCacheSize)
	if err != nil {
		return fmt.Errorf("create manager cache: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		if err := r.resolveExisting(ctx, tenantID, row); err != nil {
			return err
		}
		if err := r.resolveManager(ctx, tenantID, row, managers); err != nil {
			return err
		}
	}
	return nil
}

func (r *DirectoryResolver) resolveExisting(ctx context.Context, tenantID string, row *domain.CandidateRow) error {
	row.Action = domain.ActionCreate
	row.ExistingID = ""

	for _, id := range row.Identifiers() {
		existing, err := r.directory.FindByIdentifier(ctx, tenantID, id)
		if errors.Is(err, domain.ErrMemberNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: row %d by %s: %v", ErrResolveDirectory, row.RowIndex, id.Kind, err)
		}
		row.Action = domain.ActionUpdate
		row.ExistingID = existing.ID
		if existing.IsArchived() {
			row.AddViolation(domain.ViolationArchived, fmt.Sprintf("member matched by %s is archived and cannot be updated by import", id.Kind))
		}
		return nil
	}
	return nil
}

func (r *DirectoryResolver) resolveManager(ctx context.Context, tenantID string, row *domain.CandidateRow, cache *lru.Cache[domain.Identifier, managerLookup]) error {
	row.ManagerFound = false
	row.ManagerID = ""

	ref, ok := row.ManagerReference()
	if !ok {
		return nil
	}

	lookup, cached := cache.Get(ref)
	if !cached {
		manager, err := r.directory.FindManager(ctx, tenantID, ref)
		switch {
		case errors.Is(err, domain.ErrMemberNotFound):
			lookup = managerLookup{}
		case err != nil:
			return fmt.Errorf("%w: manager of row %d: %v", ErrResolveDirectory, row.RowIndex, err)
		default:
			lookup = managerLookup{id: manager.ID, found: true}
		}
		cache.Add(ref, lookup)
	}

	if !lookup.found {
		row.AddWarning(domain.ViolationManager, fmt.Sprintf("manager not found by %s %q", ref.Kind, ref.Value))
		return nil
	}
	row.ManagerFound = true
	row.ManagerID = lookup.id
	return nil
}
