package util

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm/dialects/postgres"
)

func GetUUID() string {
	return uuid.New().String()
}

func ContainsStringInArray(array []string, value string) bool {
	for _, v := range array {
		if v == value {
			return true
		}
	}
	return false
}

// DecodePostgresJsonbToStructType decodes a jsonb column value into the
// given struct pointer. Empty jsonb decodes into the zero value.
func DecodePostgresJsonbToStructType(source *postgres.Jsonb, target interface{}) error {
	if source == nil || len(source.RawMessage) == 0 {
		return nil
	}
	return json.Unmarshal(source.RawMessage, target)
}

func EncodeStructTypeToPostgresJsonb(source interface{}) (*postgres.Jsonb, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	return &postgres.Jsonb{RawMessage: raw}, nil
}

func ConvertPostgresJSONBToMap(source *postgres.Jsonb) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if source == nil || len(source.RawMessage) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(source.RawMessage, &result); err != nil {
		return nil, err
	}
	return result, nil
}
