package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"amenity_id",
			"slot_key",
			"slot_start",
			"slot_end",
			"requester_id",
			"guest_count",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"amenity_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"slot_key": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 64,
			},

			"slot_start": bson.M{
				"bsonType": "date",
			},

			"slot_end": bson.M{
				"bsonType": "date",
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"unit_id": bson.M{
				"bsonType":  "string",
				"maxLength": 32,
			},

			"guest_count": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  200,
			},

			"status": bson.M{
				"enum": []string{
					"requested",
					"confirmed",
					"checked_in",
					"completed",
					"cancelled",
					"rejected",
				},
			},

			"amount_cents": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"payment_status": bson.M{
				"enum": []string{
					"unpaid",
					"pending",
					"paid",
					"refunded",
				},
			},

			"idempotency_token": bson.M{
				"bsonType":  "string",
				"maxLength": 128,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"requested_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_by": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},
		},
	},
}
