package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestCompanySchemaParses(t *testing.T) {
	s, err := schema.Parse(&Company{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := s.LookUpField("DocumentRefs")
	require.NotNil(t, field)
	assert.Equal(t, "document_refs", field.DBName)
	assert.NotEmpty(t, field.DataType)
	assert.Empty(t, s.Relationships.Relations)

	idx := s.LookIndex("idx_companies_active_tax_id")
	require.NotNil(t, idx)
	assert.Equal(t, "UNIQUE", idx.Class)
	assert.Equal(t, "verification_status <> 'rejected'", idx.Where)
	require.Len(t, idx.Fields, 2)
	assert.Equal(t, "country_code", idx.Fields[0].DBName)
	assert.Equal(t, "tax_id", idx.Fields[1].DBName)
}

func TestStringListRoundTrip(t *testing.T) {
	value, err := StringList{"companies/1/registry.pdf", "companies/1/vat.pdf"}.Value()
	require.NoError(t, err)

	var list StringList
	require.NoError(t, list.Scan(value))
	assert.Equal(t, StringList{"companies/1/registry.pdf", "companies/1/vat.pdf"}, list)
}
