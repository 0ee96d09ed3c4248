package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

type contactDocument struct {
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

type organizationDocument struct {
	ID           primitive.ObjectID    `bson:"_id,omitempty"`
	Name         string                `bson:"name"`
	Slug         string                `bson:"slug"`
	Type         string                `bson:"type"`
	Description  string                `bson:"description,omitempty"`
	ContactInfo  contactDocument       `bson:"contactInfo"`
	IsActive     bool                  `bson:"isActive"`
	LocationRefs []locationRefDocument `bson:"locationRefs"`
	CreatedAt    time.Time             `bson:"createdAt"`
	UpdatedAt    time.Time             `bson:"updatedAt"`
}

func (d *organizationDocument) toDomain() *domain.Organization {
	return &domain.Organization{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Slug:         d.Slug,
		Type:         domain.OrganizationType(d.Type),
		Description:  d.Description,
		ContactEmail: d.ContactInfo.Email,
		ContactPhone: d.ContactInfo.Phone,
		IsActive:     d.IsActive,
		LocationRefs: fromRefDocuments(d.LocationRefs),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoOrganizationRepository implements OrganizationRepository on MongoDB
type MongoOrganizationRepository struct {
	coll *mongo.Collection
}

// NewMongoOrganizationRepository creates a new MongoOrganizationRepository
func NewMongoOrganizationRepository(db *mongo.Database) *MongoOrganizationRepository {
	return &MongoOrganizationRepository{coll: db.Collection(CollectionOrganizations)}
}

// Create inserts an organization
func (r *MongoOrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.organization.create")
	defer span.End()

	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	doc := &organizationDocument{
		Name:         org.Name,
		Slug:         org.Slug,
		Type:         string(org.Type),
		Description:  org.Description,
		ContactInfo:  contactDocument{Email: org.ContactEmail, Phone: org.ContactPhone},
		IsActive:     org.IsActive,
		LocationRefs: toRefDocuments(org.LocationRefs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

// GetByID retrieves an organization by ID
func (r *MongoOrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.organization.get_by_id")
	defer span.End()

	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var doc organizationDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return doc.toDomain(), nil
}

// AppendLocationRef pushes ref onto the organization's locationRefs
func (r *MongoOrganizationRepository) AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.organization.append_location_ref")
	defer span.End()

	return pushLocationRef(ctx, r.coll, id, ref)
}

// Delete removes an organization
func (r *MongoOrganizationRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.organization.delete")
	defer span.End()

	return deleteByID(ctx, r.coll, id)
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return nil
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", coll.Name(), err)
	}
	return nil
}
