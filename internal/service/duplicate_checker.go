package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
)

type duplicateChecker struct {
	profiles repository.ProfileRepository
}

// NewDuplicateChecker creates a new DuplicateChecker
func NewDuplicateChecker(profiles repository.ProfileRepository) DuplicateChecker {
	return &duplicateChecker{profiles: profiles}
}

func (c *duplicateChecker) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return c.profiles.ExistsByEmail(ctx, domain.NormalizeEmail(email))
}

func (c *duplicateChecker) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if documentNumber == "" {
		return false, nil
	}
	return c.profiles.ExistsByDocumentNumber(ctx, documentNumber)
}

// Check looks up the email, then the document number when one is given
func (c *duplicateChecker) Check(ctx context.Context, email, documentNumber string) error {
	exists, err := c.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return &domain.DuplicateError{Field: domain.FieldEmail}
	}

	exists, err = c.ExistsByDocumentNumber(ctx, documentNumber)
	if err != nil {
		return fmt.Errorf("check document number: %w", err)
	}
	if exists {
		return &domain.DuplicateError{Field: domain.FieldDocumentNumber}
	}
	return nil
}
