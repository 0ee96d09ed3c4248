package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// MemoryProfileRepository is an in-memory ProfileRepository.
// Email and document number are unique among active profiles, as with the Mongo indexes.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	order    []string
}

// NewMemoryProfileRepository creates an empty MemoryProfileRepository
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]*domain.Profile)}
}

func (r *MemoryProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if profile.IsActive {
		for _, p := range r.profiles {
			if !p.IsActive {
				continue
			}
			if p.Email == profile.Email {
				return &domain.DuplicateError{Field: domain.FieldEmail}
			}
			if profile.DocumentNumber != "" && p.DocumentNumber == profile.DocumentNumber {
				return &domain.DuplicateError{Field: domain.FieldDocumentNumber}
			}
		}
	}

	now := time.Now().UTC()
	profile.ID = primitive.NewObjectID().Hex()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	r.profiles[profile.ID] = copyProfile(profile)
	r.order = append(r.order, profile.ID)
	return nil
}

func (r *MemoryProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return copyProfile(p), nil
}

func (r *MemoryProfileRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if p := r.profiles[id]; p.SubjectID == subjectID {
			return copyProfile(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryProfileRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryProfileRepository) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.DocumentNumber != "" && p.DocumentNumber == documentNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryProfileRepository) AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LocationRefs = append(p.LocationRefs, ref)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// All returns every stored profile in insertion order
func (r *MemoryProfileRepository) All() []*domain.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyProfile(r.profiles[id]))
	}
	return out
}

// Count returns the number of stored profiles
func (r *MemoryProfileRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func copyProfile(p *domain.Profile) *domain.Profile {
	cp := *p
	cp.LocationRefs = append([]domain.LocationRef(nil), p.LocationRefs...)
	return &cp
}

// MemoryOrganizationRepository is an in-memory OrganizationRepository
type MemoryOrganizationRepository struct {
	mu   sync.RWMutex
	orgs map[string]*domain.Organization
}

// NewMemoryOrganizationRepository creates an empty MemoryOrganizationRepository
func NewMemoryOrganizationRepository() *MemoryOrganizationRepository {
	return &MemoryOrganizationRepository{orgs: make(map[string]*domain.Organization)}
}

func (r *MemoryOrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	org.ID = primitive.NewObjectID().Hex()
	org.CreatedAt = now
	org.UpdatedAt = now
	r.orgs[org.ID] = copyOrganization(org)
	return nil
}

func (r *MemoryOrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orgs[id]
	if !ok {
		return nil, nil
	}
	return copyOrganization(o), nil
}

func (r *MemoryOrganizationRepository) AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orgs[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.LocationRefs = append(o.LocationRefs, ref)
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryOrganizationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orgs, id)
	return nil
}

// Count returns the number of stored organizations
func (r *MemoryOrganizationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orgs)
}

func copyOrganization(o *domain.Organization) *domain.Organization {
	cp := *o
	cp.LocationRefs = append([]domain.LocationRef(nil), o.LocationRefs...)
	return &cp
}

// MemoryVenueRepository is an in-memory VenueRepository
type MemoryVenueRepository struct {
	mu     sync.RWMutex
	venues map[string]*domain.Venue
}

// NewMemoryVenueRepository creates an empty MemoryVenueRepository
func NewMemoryVenueRepository() *MemoryVenueRepository {
	return &MemoryVenueRepository{venues: make(map[string]*domain.Venue)}
}

func (r *MemoryVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	venue.ID = primitive.NewObjectID().Hex()
	venue.CreatedAt = now
	venue.UpdatedAt = now
	cp := *venue
	r.venues[venue.ID] = &cp
	return nil
}

func (r *MemoryVenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.venues[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *MemoryVenueRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Venue, 0)
	for _, v := range r.venues {
		if v.OrganizationRef == organizationID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsMain != out[j].IsMain {
			return out[i].IsMain
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryVenueRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.venues, id)
	return nil
}

// Count returns the number of stored venues
func (r *MemoryVenueRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.venues)
}
