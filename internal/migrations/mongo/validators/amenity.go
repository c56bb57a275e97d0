package validators

import "go.mongodb.org/mongo-driver/bson"

var AmenityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"capacity",
			"open_from",
			"open_until",
			"slot_templates",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"capacity": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  200,
			},

			"paid": bson.M{
				"bsonType": "bool",
			},

			"price_cents": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"requires_approval": bson.M{
				"bsonType": "bool",
			},

			"open_from": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"open_until": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"time_zone": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"cancellation_window_min": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  10080,
			},

			"slot_templates": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 48,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"start_time", "end_time", "weekdays"},
					"properties": bson.M{
						"start_time": bson.M{
							"bsonType": "string",
							"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
						},
						"end_time": bson.M{
							"bsonType": "string",
							"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
						},
						"weekdays": bson.M{
							"bsonType": "array",
							"minItems": 1,
							"maxItems": 7,
							"items": bson.M{
								"enum": []string{
									"Sunday",
									"Monday",
									"Tuesday",
									"Wednesday",
									"Thursday",
									"Friday",
									"Saturday",
								},
							},
						},
						"capacity": bson.M{
							"bsonType": "int",
							"minimum":  1,
							"maximum":  200,
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
