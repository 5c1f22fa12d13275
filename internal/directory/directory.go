package directory

import (
	"context"
	"errors"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/model"
)

var ErrNotFound = errors.New("not found in directory")

// PropertyDirectory is the read-only listing service.
type PropertyDirectory interface {
	GetProperty(ctx context.Context, id string) (*model.Property, error)
}

// UserDirectory is the read-only account service.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// RequireOwnership checks that propertyID exists, is listed, and belongs to
// landlordID. A missing or foreign property is a validation failure; a
// directory outage is an external dependency failure.
func RequireOwnership(ctx context.Context, properties PropertyDirectory, landlordID, propertyID string) (*model.Property, error) {
	property, err := properties.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.Validation("Property does not exist", map[string]any{"property_id": propertyID})
		}
		return nil, apperrors.ExternalDependency("property directory", err)
	}
	if property.LandlordID != landlordID {
		return nil, apperrors.Validation("Landlord does not own this property", map[string]any{
			"property_id": propertyID,
			"landlord_id": landlordID,
		})
	}
	if !property.Active {
		return nil, apperrors.Validation("Property is not active", map[string]any{"property_id": propertyID})
	}
	return property, nil
}

func RequireUser(ctx context.Context, users UserDirectory, userID string) (*model.User, error) {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.Validation("User does not exist", map[string]any{"user_id": userID})
		}
		return nil, apperrors.ExternalDependency("user directory", err)
	}
	return user, nil
}
