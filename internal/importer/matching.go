package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/repository"

	"github.com/google/uuid"
)

// DuplicateStrategy controls what happens when a row's natural key matches an
// existing record.
type DuplicateStrategy string

const (
	DuplicateSkip   DuplicateStrategy = "skip"
	DuplicateUpdate DuplicateStrategy = "update"
	DuplicateCreate DuplicateStrategy = "create"
)

// ParseDuplicateStrategy normalizes a submitted strategy, defaulting to skip.
func ParseDuplicateStrategy(raw string) (DuplicateStrategy, error) {
	switch strategy := DuplicateStrategy(strings.ToLower(strings.TrimSpace(raw))); strategy {
	case "":
		return DuplicateSkip, nil
	case DuplicateSkip, DuplicateUpdate, DuplicateCreate:
		return strategy, nil
	default:
		return "", fmt.Errorf("unsupported duplicateStrategy %q", raw)
	}
}

// ContactStrategy controls how deal rows resolve their associated contact.
type ContactStrategy string

const (
	ContactMatch  ContactStrategy = "match"
	ContactCreate ContactStrategy = "create"
	ContactSkip   ContactStrategy = "skip"
)

// ParseContactStrategy normalizes a submitted strategy, defaulting to match.
func ParseContactStrategy(raw string) (ContactStrategy, error) {
	switch strategy := ContactStrategy(strings.ToLower(strings.TrimSpace(raw))); strategy {
	case "":
		return ContactMatch, nil
	case ContactMatch, ContactCreate, ContactSkip:
		return strategy, nil
	default:
		return "", fmt.Errorf("unsupported contactStrategy %q", raw)
	}
}

type rowOutcome int

const (
	outcomeCreated rowOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

// rowImporter persists one coerced row. A non-nil error means the row is
// skipped with that error recorded; outcomeSkipped with a nil error is a
// silent skip (duplicate under the skip strategy).
type rowImporter interface {
	importRow(ctx context.Context, values map[string]any) (rowOutcome, error)
}

// contactImporter matches contacts by normalized email. Rows without an email
// carry no natural key and are always created.
type contactImporter struct {
	contacts       repository.ContactRepository
	organizationID uuid.UUID
	strategy       DuplicateStrategy
}

func (ci *contactImporter) importRow(ctx context.Context, values map[string]any) (rowOutcome, error) {
	email, _ := values["email"].(string)
	email = strings.TrimSpace(email)

	var existing domain.Contact
	matched := false
	if email != "" && ci.strategy != DuplicateCreate {
		found, err := ci.contacts.FindByEmail(ctx, ci.organizationID, email)
		switch {
		case err == nil:
			existing = found
			matched = true
		case errors.Is(err, repository.ErrNotFound):
		default:
			return outcomeSkipped, fmt.Errorf("failed to match contact: %w", err)
		}
	}

	if matched {
		switch ci.strategy {
		case DuplicateSkip:
			return outcomeSkipped, nil
		case DuplicateUpdate:
			if _, err := ci.contacts.Update(ctx, existing.WithValues(values)); err != nil {
				return outcomeSkipped, fmt.Errorf("failed to update contact: %w", err)
			}
			return outcomeUpdated, nil
		}
	}

	if _, err := ci.contacts.Create(ctx, domain.NewContactFromValues(ci.organizationID, values)); err != nil {
		return outcomeSkipped, fmt.Errorf("failed to insert contact: %w", err)
	}
	return outcomeCreated, nil
}

// contactLinkFields carry contact resolution input on deal rows. They are
// stripped before deal values are applied.
var contactLinkFields = []string{"contact_email", "contact_first_name", "contact_last_name"}

// dealImporter resolves the row's contact first, then matches deals by the
// normalized (name, contact) pair.
type dealImporter struct {
	deals           repository.DealRepository
	contacts        repository.ContactRepository
	organizationID  uuid.UUID
	strategy        DuplicateStrategy
	contactStrategy ContactStrategy
	defaultStageID  *uuid.UUID
}

func (di *dealImporter) importRow(ctx context.Context, values map[string]any) (rowOutcome, error) {
	name, _ := values["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return outcomeSkipped, errors.New("deal name is required")
	}

	contactID, err := di.resolveContact(ctx, values)
	if err != nil {
		return outcomeSkipped, err
	}

	dealValues := make(map[string]any, len(values))
	for key, value := range values {
		dealValues[key] = value
	}
	for _, key := range contactLinkFields {
		delete(dealValues, key)
	}
	if _, ok := dealValues[domain.FieldKeyStage]; !ok && di.defaultStageID != nil {
		dealValues[domain.FieldKeyStage] = *di.defaultStageID
	}

	var existing domain.Deal
	matched := false
	if di.strategy != DuplicateCreate {
		found, err := di.deals.FindByNameAndContact(ctx, di.organizationID, contactID, name)
		switch {
		case err == nil:
			existing = found
			matched = true
		case errors.Is(err, repository.ErrNotFound):
		default:
			return outcomeSkipped, fmt.Errorf("failed to match deal: %w", err)
		}
	}

	if matched {
		switch di.strategy {
		case DuplicateSkip:
			return outcomeSkipped, nil
		case DuplicateUpdate:
			if _, err := di.deals.Update(ctx, existing.WithValues(dealValues)); err != nil {
				return outcomeSkipped, fmt.Errorf("failed to update deal: %w", err)
			}
			return outcomeUpdated, nil
		}
	}

	if _, err := di.deals.Create(ctx, domain.NewDealFromValues(di.organizationID, contactID, dealValues)); err != nil {
		return outcomeSkipped, fmt.Errorf("failed to insert deal: %w", err)
	}
	return outcomeCreated, nil
}

// resolveContact looks up the row's contact by email, then by the exact
// (first, last) name pair. Under the create strategy an unmatched contact is
// created from the linkage columns instead of failing the row.
func (di *dealImporter) resolveContact(ctx context.Context, values map[string]any) (uuid.UUID, error) {
	email, _ := values["contact_email"].(string)
	email = strings.TrimSpace(email)
	firstName, _ := values["contact_first_name"].(string)
	firstName = strings.TrimSpace(firstName)
	lastName, _ := values["contact_last_name"].(string)
	lastName = strings.TrimSpace(lastName)

	if email != "" {
		contact, err := di.contacts.FindByEmail(ctx, di.organizationID, email)
		if err == nil {
			return contact.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("failed to match contact: %w", err)
		}
	}
	if firstName != "" || lastName != "" {
		contact, err := di.contacts.FindByName(ctx, di.organizationID, firstName, lastName)
		if err == nil {
			return contact.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("failed to match contact: %w", err)
		}
	}

	if di.contactStrategy == ContactCreate && (email != "" || firstName != "" || lastName != "") {
		contact, err := di.contacts.Create(ctx, domain.NewContactFromValues(di.organizationID, map[string]any{
			"email":      email,
			"first_name": firstName,
			"last_name":  lastName,
		}))
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert contact: %w", err)
		}
		return contact.ID, nil
	}

	return uuid.Nil, errors.New("no matching contact")
}
