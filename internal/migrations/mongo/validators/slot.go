package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "property_id", "landlord_id", "start_time", "end_time", "booked"},
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"property_id": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"landlord_id": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"start_time":  bson.M{"bsonType": "date"},
			"end_time":    bson.M{"bsonType": "date"},
			"booked":      bson.M{"bsonType": "bool"},
			"created_at":  bson.M{"bsonType": "date"},
			"updated_at":  bson.M{"bsonType": "date"},
		},
	},
}
