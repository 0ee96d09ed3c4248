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

type profileDocument struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty"`
	SubjectID      string                `bson:"subjectId"`
	Name           string                `bson:"name"`
	Email          string                `bson:"email"`
	Role           string                `bson:"role"`
	Phone          string                `bson:"phone,omitempty"`
	DocumentType   string                `bson:"documentType,omitempty"`
	DocumentNumber string                `bson:"documentNumber,omitempty"`
	IsActive       bool                  `bson:"isActive"`
	LocationRefs   []locationRefDocument `bson:"locationRefs"`
	CreatedAt      time.Time             `bson:"createdAt"`
	UpdatedAt      time.Time             `bson:"updatedAt"`
}

func (d *profileDocument) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:             d.ID.Hex(),
		SubjectID:      d.SubjectID,
		Name:           d.Name,
		Email:          d.Email,
		Role:           domain.Role(d.Role),
		Phone:          d.Phone,
		DocumentType:   d.DocumentType,
		DocumentNumber: d.DocumentNumber,
		IsActive:       d.IsActive,
		LocationRefs:   fromRefDocuments(d.LocationRefs),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoProfileRepository implements ProfileRepository on MongoDB
type MongoProfileRepository struct {
	coll *mongo.Collection
}

// NewMongoProfileRepository creates a new MongoProfileRepository
func NewMongoProfileRepository(db *mongo.Database) *MongoProfileRepository {
	return &MongoProfileRepository{coll: db.Collection(CollectionProfiles)}
}

// Create inserts a profile
func (r *MongoProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.create")
	defer span.End()

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	doc := &profileDocument{
		SubjectID:      profile.SubjectID,
		Name:           profile.Name,
		Email:          profile.Email,
		Role:           string(profile.Role),
		Phone:          profile.Phone,
		DocumentType:   profile.DocumentType,
		DocumentNumber: profile.DocumentNumber,
		IsActive:       profile.IsActive,
		LocationRefs:   toRefDocuments(profile.LocationRefs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		err = mapDuplicateKey(err)
		telemetry.RecordError(span, err)
		return err
	}
	profile.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

// GetByID retrieves a profile by ID
func (r *MongoProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.get_by_id")
	defer span.End()

	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetBySubjectID retrieves the profile of an identity subject
func (r *MongoProfileRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.get_by_subject")
	defer span.End()

	return r.findOne(ctx, bson.M{"subjectId": subjectID})
}

func (r *MongoProfileRepository) findOne(ctx context.Context, filter bson.M) (*domain.Profile, error) {
	var doc profileDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return doc.toDomain(), nil
}

// ExistsByEmail checks for a profile with this exact email
func (r *MongoProfileRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.exists_by_email")
	defer span.End()

	return r.exists(ctx, bson.M{"email": email})
}

// ExistsByDocumentNumber checks for a profile with this exact document number
func (r *MongoProfileRepository) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.exists_by_document")
	defer span.End()

	return r.exists(ctx, bson.M{"documentNumber": documentNumber})
}

func (r *MongoProfileRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n > 0, nil
}

// AppendLocationRef pushes ref onto the profile's locationRefs
func (r *MongoProfileRepository) AppendLocationRef(ctx context.Context, id string, ref domain.LocationRef) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.profile.append_location_ref")
	defer span.End()

	return pushLocationRef(ctx, r.coll, id, ref)
}

func pushLocationRef(ctx context.Context, coll *mongo.Collection, id string, ref domain.LocationRef) error {
	oid, ok := parseID(id)
	if !ok {
		return domain.ErrNotFound
	}

	update := bson.M{
		"$push": bson.M{"locationRefs": locationRefDocument{Key: ref.Key, Ref: ref.Ref}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to append location ref: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
