package utils

import (
	"database/sql"
	"testing"

	"github.com/gobuffalo/nulls"
	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
)

func TestNullsStringValue(t *testing.T) {
	assert.Equal(t, "", NullsStringValue(nulls.String{}))
	assert.Equal(t, "a@b.com", NullsStringValue(nulls.NewString(" a@b.com ")))
	assert.Equal(t, "", NullsStringValue(nulls.NewString("   ")))
}

func TestSQLNullStringRoundTrip(t *testing.T) {
	assert.False(t, SqlToNullString(sql.NullString{}).Valid)
	assert.Equal(t, null.StringFrom("cus_1"), SqlToNullString(sql.NullString{String: "cus_1", Valid: true}))

	assert.Equal(t, sql.NullString{String: "sub_1", Valid: true}, NullStringToSQL(null.StringFrom("sub_1")))
	assert.Equal(t, sql.NullString{}, NullStringToSQL(null.String{}))
}

func TestStringToNull(t *testing.T) {
	assert.False(t, StringToNull("").Valid)
	assert.Equal(t, "cus_1", StringToNull("cus_1").String)
}
