package mongo

import (
	"testing"

	"propbook/internal/guard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_CoverEveryStore(t *testing.T) {
	names := make([]string, 0)
	for _, c := range Collections() {
		names = append(names, c.Name)
	}

	assert.Equal(t, []string{
		"Availability_slots",
		"Event_outbox",
		"Locks",
		"Shortlet_availability",
		"Shortlet_bookings",
		"Visits",
	}, names)
}

func TestCollections_ValidatorsUseStringIDs(t *testing.T) {
	for _, c := range Collections() {
		if c.Validator == nil {
			continue
		}
		schema, ok := c.Validator["$jsonSchema"].(bson.M)
		require.True(t, ok, c.Name)
		props, ok := schema["properties"].(bson.M)
		require.True(t, ok, c.Name)
		assert.Equal(t, bson.M{"bsonType": "string"}, props["_id"], c.Name)
	}
}

func TestLocksIndexes_ExpireOnDeadline(t *testing.T) {
	for _, c := range Collections() {
		if c.Name != guard.LocksCollection {
			continue
		}
		require.Len(t, c.Indexes, 1)
		opts := c.Indexes[0].Options
		require.NotNil(t, opts)
		require.NotNil(t, opts.ExpireAfterSeconds)
		assert.Equal(t, int32(0), *opts.ExpireAfterSeconds)
		return
	}
	t.Fatal("locks collection not defined")
}
