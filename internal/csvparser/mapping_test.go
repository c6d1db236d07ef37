package csvparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDelimiter_SemicolonWins(t *testing.T) {
	content := "Date;Description;Amount\n2026-01-01;Coffee;5.00\n"
	assert.Equal(t, ';', DetectDelimiter(content))
}

func TestDetectDelimiter_TieResolvesToComma(t *testing.T) {
	content := "a,b;c\nx,y;z\n"
	assert.Equal(t, ',', DetectDelimiter(content))
}

func TestDetectDelimiter_PipeWins(t *testing.T) {
	content := "Date|Ref|Amount\n2026-01-01|TXN1|5.00\n"
	assert.Equal(t, '|', DetectDelimiter(content))
}

func TestPreview_SuggestsMapping(t *testing.T) {
	content := []byte("Date,Reference,Narration,Debit,Credit\n2026-01-01,TXN1,Coffee,5.00,\n2026-01-02,TXN2,Salary,,2000.00\n")

	result, err := Preview(content)
	require.NoError(t, err)
	require.NotNil(t, result.Mapping)

	assert.Equal(t, 0, result.Mapping.DateColumn)
	assert.Equal(t, 1, result.Mapping.ReferenceColumn)
	assert.Equal(t, 2, result.Mapping.DescriptionColumn)
	assert.Equal(t, 3, result.Mapping.DebitColumn)
	assert.Equal(t, 4, result.Mapping.CreditColumn)
	assert.Equal(t, -1, result.Mapping.AmountColumn)
	assert.Len(t, result.SampleRows, 2)
}

func TestPreview_AmountColumnUsedOnlyWithoutDebitCredit(t *testing.T) {
	content := []byte("Date,Value\n2026-01-01,-5.00\n")

	result, err := Preview(content)
	require.NoError(t, err)
	require.NotNil(t, result.Mapping)
	assert.Equal(t, 1, result.Mapping.AmountColumn)
	assert.Equal(t, -1, result.Mapping.DebitColumn)
}

func TestPreview_NoDateColumnYieldsNilMapping(t *testing.T) {
	content := []byte("Foo,Bar\n1,2\n")

	result, err := Preview(content)
	require.NoError(t, err)
	assert.Nil(t, result.Mapping)
}
