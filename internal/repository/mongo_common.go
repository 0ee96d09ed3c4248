package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// Collection names
const (
	CollectionProfiles      = "profiles"
	CollectionOrganizations = "organizations"
	CollectionVenues        = "venues"
)

// Unique index names. Duplicate-key errors are mapped back to fields by name.
const (
	IndexProfileEmail          = "uniq_profile_email"
	IndexProfileDocumentNumber = "uniq_profile_document_number"
	IndexProfileSubject        = "uniq_profile_subject"
)

type locationRefDocument struct {
	Key string `bson:"_key"`
	Ref string `bson:"_ref"`
}

func toRefDocuments(refs []domain.LocationRef) []locationRefDocument {
	out := make([]locationRefDocument, 0, len(refs))
	for _, r := range refs {
		out = append(out, locationRefDocument{Key: r.Key, Ref: r.Ref})
	}
	return out
}

func fromRefDocuments(docs []locationRefDocument) []domain.LocationRef {
	out := make([]domain.LocationRef, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.LocationRef{Key: d.Key, Ref: d.Ref})
	}
	return out
}

// parseID converts a hex id. Malformed ids are reported as not found.
func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// EnsureIndexes creates the indexes the repositories rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	activeOnly := bson.M{"isActive": true}

	profileIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(IndexProfileEmail).SetUnique(true).SetPartialFilterExpression(activeOnly),
		},
		{
			Keys: bson.D{{Key: "documentNumber", Value: 1}},
			Options: options.Index().SetName(IndexProfileDocumentNumber).SetUnique(true).SetPartialFilterExpression(bson.M{
				"isActive":       true,
				"documentNumber": bson.M{"$exists": true},
			}),
		},
		{
			Keys:    bson.D{{Key: "subjectId", Value: 1}},
			Options: options.Index().SetName(IndexProfileSubject).SetUnique(true),
		},
	}
	if _, err := db.Collection(CollectionProfiles).Indexes().CreateMany(ctx, profileIndexes); err != nil {
		return fmt.Errorf("failed to create profile indexes: %w", err)
	}

	venueIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "organizationRef", Value: 1}, {Key: "isMain", Value: -1}, {Key: "name", Value: 1}}},
	}
	if _, err := db.Collection(CollectionVenues).Indexes().CreateMany(ctx, venueIndexes); err != nil {
		return fmt.Errorf("failed to create venue indexes: %w", err)
	}

	orgIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}},
	}
	if _, err := db.Collection(CollectionOrganizations).Indexes().CreateMany(ctx, orgIndexes); err != nil {
		return fmt.Errorf("failed to create organization indexes: %w", err)
	}
	return nil
}

// mapDuplicateKey turns a profile unique-index violation into a DuplicateError
func mapDuplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	msg := duplicateKeyMessage(err)
	switch {
	case strings.Contains(msg, IndexProfileDocumentNumber):
		return &domain.DuplicateError{Field: domain.FieldDocumentNumber}
	case strings.Contains(msg, IndexProfileEmail):
		return &domain.DuplicateError{Field: domain.FieldEmail}
	}
	return err
}

func duplicateKeyMessage(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		var b strings.Builder
		for _, e := range we.WriteErrors {
			b.WriteString(e.Message)
		}
		return b.String()
	}
	return err.Error()
}
