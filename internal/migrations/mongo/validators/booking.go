package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"tenant_id",
			"landlord_id",
			"property_id",
			"start_date",
			"end_date",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"tenant_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"landlord_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"PENDING", "ACCEPTED", "REJECTED", "CANCELLED", "RESCHEDULED"},
			},

			"guest_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  50,
			},

			"contact": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"name":  bson.M{"bsonType": "string"},
					"email": bson.M{"bsonType": "string"},
					"phone": bson.M{"bsonType": "string"},
				},
			},

			"payment": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"status": bson.M{
						"enum": []string{"", "UNPAID", "PENDING", "PAID", "REFUNDED"},
					},
					"amount": bson.M{
						"bsonType": []string{"int", "long"},
						"minimum":  0,
					},
				},
			},

			"reason": bson.M{
				"bsonType": "string",
			},

			"previous_start_date": bson.M{
				"bsonType": "date",
			},

			"previous_end_date": bson.M{
				"bsonType": "date",
			},

			"reminder_sent": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
