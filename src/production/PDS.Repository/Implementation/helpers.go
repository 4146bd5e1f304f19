package implementation

import (
	"database/sql"
	"encoding/json"
)

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// jsonOrEmptyObject keeps payload columns from ever holding SQL NULL
func jsonOrEmptyObject(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

// jsonText returns raw as text for COPY. pq sends []byte as bytea during
// COPY, which jsonb rejects. Listed COPY columns skip their DEFAULT, so an
// absent raw is written as an empty object for the NOT NULL column.
func jsonText(raw json.RawMessage) string {
	return string(jsonOrEmptyObject(raw))
}
