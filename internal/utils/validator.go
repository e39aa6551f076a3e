package utils

import (
	"database/sql"
	"strings"

	"github.com/gobuffalo/nulls"
	"github.com/guregu/null"
)

// NullsStringValue returns the trimmed string, or "" when ns is null.
func NullsStringValue(ns nulls.String) string {
	if ns.Valid {
		return strings.TrimSpace(ns.String)
	}
	return ""
}

func SqlToNullString(ns sql.NullString) null.String {
	if ns.Valid {
		return null.StringFrom(ns.String)
	}
	return null.String{}
}

// Converts null.String to sql.NullString
func NullStringToSQL(s null.String) sql.NullString {
	return sql.NullString{
		String: s.String,
		Valid:  s.Valid,
	}
}

// StringToNull treats the empty string as null.
func StringToNull(s string) null.String {
	return null.NewString(s, s != "")
}
