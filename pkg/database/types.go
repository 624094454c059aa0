package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a custom type for storing free-form JSON objects that works
// across PostgreSQL, MySQL and SQLite: stored as a JSON string column.
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface for reading from the database.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("JSONMap: unsupported scan type")
	}
}

// Value implements the driver.Valuer interface for writing to the database.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (JSONMap) GormDataType() string {
	return "text"
}
