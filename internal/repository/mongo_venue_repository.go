package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

type addressDocument struct {
	Street     string `bson:"street"`
	City       string `bson:"city"`
	State      string `bson:"state,omitempty"`
	PostalCode string `bson:"postalCode,omitempty"`
	Country    string `bson:"country,omitempty"`
}

type capacityDocument struct {
	MinGuests *int `bson:"minGuests,omitempty"`
	MaxGuests *int `bson:"maxGuests,omitempty"`
}

type venueDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Slug            string             `bson:"slug"`
	OrganizationRef primitive.ObjectID `bson:"organizationRef"`
	IsMain          bool               `bson:"isMain"`
	Description     string             `bson:"description,omitempty"`
	Address         addressDocument    `bson:"address"`
	ContactInfo     *contactDocument   `bson:"contactInfo,omitempty"`
	Capacity        *capacityDocument  `bson:"capacity,omitempty"`
	IsActive        bool               `bson:"isActive"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *venueDocument) toDomain() *domain.Venue {
	v := &domain.Venue{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Slug:            d.Slug,
		OrganizationRef: d.OrganizationRef.Hex(),
		IsMain:          d.IsMain,
		Description:     d.Description,
		Address: domain.Address{
			Street:     d.Address.Street,
			City:       d.Address.City,
			State:      d.Address.State,
			PostalCode: d.Address.PostalCode,
			Country:    d.Address.Country,
		},
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.ContactInfo != nil {
		v.ContactInfo = &domain.ContactInfo{Email: d.ContactInfo.Email, Phone: d.ContactInfo.Phone}
	}
	if d.Capacity != nil {
		v.Capacity = &domain.Capacity{MinGuests: d.Capacity.MinGuests, MaxGuests: d.Capacity.MaxGuests}
	}
	return v
}

// MongoVenueRepository implements VenueRepository on MongoDB
type MongoVenueRepository struct {
	coll *mongo.Collection
}

// NewMongoVenueRepository creates a new MongoVenueRepository
func NewMongoVenueRepository(db *mongo.Database) *MongoVenueRepository {
	return &MongoVenueRepository{coll: db.Collection(CollectionVenues)}
}

// Create inserts a venue. OrganizationRef must be a valid organization id.
func (r *MongoVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.venue.create")
	defer span.End()

	orgID, ok := parseID(venue.OrganizationRef)
	if !ok {
		return fmt.Errorf("invalid organization ref %q", venue.OrganizationRef)
	}

	now := time.Now().UTC()
	venue.CreatedAt = now
	venue.UpdatedAt = now

	doc := &venueDocument{
		Name:            venue.Name,
		Slug:            venue.Slug,
		OrganizationRef: orgID,
		IsMain:          venue.IsMain,
		Description:     venue.Description,
		Address: addressDocument{
			Street:     venue.Address.Street,
			City:       venue.Address.City,
			State:      venue.Address.State,
			PostalCode: venue.Address.PostalCode,
			Country:    venue.Address.Country,
		},
		IsActive:  venue.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if venue.ContactInfo != nil {
		doc.ContactInfo = &contactDocument{Email: venue.ContactInfo.Email, Phone: venue.ContactInfo.Phone}
	}
	if venue.Capacity != nil {
		doc.Capacity = &capacityDocument{MinGuests: venue.Capacity.MinGuests, MaxGuests: venue.Capacity.MaxGuests}
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to create venue: %w", err)
	}
	venue.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

// GetByID retrieves a venue by ID
func (r *MongoVenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.venue.get_by_id")
	defer span.End()

	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var doc venueDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find venue: %w", err)
	}
	return doc.toDomain(), nil
}

// ListByOrganization returns the venues of an organization, main venue first
func (r *MongoVenueRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.venue.list_by_organization")
	defer span.End()

	orgID, ok := parseID(organizationID)
	if !ok {
		return []*domain.Venue{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "isMain", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"organizationRef": orgID}, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer cursor.Close(ctx)

	venues := make([]*domain.Venue, 0)
	for cursor.Next(ctx) {
		var doc venueDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode venue: %w", err)
		}
		venues = append(venues, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venues: %w", err)
	}
	return venues, nil
}

// Delete removes a venue
func (r *MongoVenueRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.venue.delete")
	defer span.End()

	return deleteByID(ctx, r.coll, id)
}
