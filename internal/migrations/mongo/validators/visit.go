package validators

import "go.mongodb.org/mongo-driver/bson"

var VisitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"property_id",
			"visitor_id",
			"landlord_id",
			"slot_id",
			"scheduled_at",
			"status",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string"},
			"property_id":  bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"visitor_id":   bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"landlord_id":  bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"slot_id":      bson.M{"bsonType": "string", "minLength": 1},
			"scheduled_at": bson.M{"bsonType": "date"},
			"duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1440,
			},
			"status": bson.M{
				"enum": []string{"PENDING", "APPROVED", "REJECTED", "CANCELLED", "RESCHEDULED", "COMPLETED"},
			},
			"notes":                 bson.M{"bsonType": "string", "maxLength": 500},
			"reason":                bson.M{"bsonType": "string"},
			"previous_scheduled_at": bson.M{"bsonType": "date"},
			"feedback_notified":     bson.M{"bsonType": "bool"},
			"reminder_sent":         bson.M{"bsonType": "bool"},
			"created_at":            bson.M{"bsonType": "date"},
			"updated_at":            bson.M{"bsonType": "date"},
		},
	},
}
