package validators

import "go.mongodb.org/mongo-driver/bson"

var AvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "landlord_id", "property_id", "start_date", "end_date"},
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"landlord_id": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"property_id": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"start_date":  bson.M{"bsonType": "date"},
			"end_date":    bson.M{"bsonType": "date"},
			"created_at":  bson.M{"bsonType": "date"},
		},
	},
}
