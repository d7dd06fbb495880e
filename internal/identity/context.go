package identity

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey string

const (
	customerIDKey contextKey = "identity_customer_id"
	staffIDKey    contextKey = "identity_staff_id"
	venueIDKey    contextKey = "identity_venue_id"
	requestIDKey  contextKey = "identity_request_id"
)

// WithCustomer attaches an authenticated customer identity. The assertion is
// produced by the external auth layer; this package only carries it.
func WithCustomer(ctx context.Context, userID snowflake.ID) context.Context {
	if userID == 0 {
		return ctx
	}
	return context.WithValue(ctx, customerIDKey, userID)
}

func CustomerFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(customerIDKey).(snowflake.ID)
	return id, ok && id != 0
}

// WithStaff attaches a bartender identity scoped to a venue.
func WithStaff(ctx context.Context, staffID, venueID snowflake.ID) context.Context {
	if staffID != 0 {
		ctx = context.WithValue(ctx, staffIDKey, staffID)
	}
	if venueID != 0 {
		ctx = context.WithValue(ctx, venueIDKey, venueID)
	}
	return ctx
}

func StaffFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(staffIDKey).(snowflake.ID)
	return id, ok && id != 0
}

func VenueFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(venueIDKey).(snowflake.ID)
	return id, ok && id != 0
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}
