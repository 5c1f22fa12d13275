package validators

import "go.mongodb.org/mongo-driver/bson"

// OutboxValidator requires at least one message per staged batch.
var OutboxValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "messages", "status", "created_at"},
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string"},
			"messages": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"event_id", "event_type", "key", "value"},
				},
			},
			"status":       bson.M{"enum": []string{"pending", "published"}},
			"attempts":     bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"last_error":   bson.M{"bsonType": "string"},
			"created_at":   bson.M{"bsonType": "date"},
			"published_at": bson.M{"bsonType": "date"},
		},
	},
}
