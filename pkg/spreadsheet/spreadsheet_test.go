package spreadsheet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailroom/pkg/placeholder"
	"github.com/dmitrymomot/mailroom/pkg/spreadsheet"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	t.Run("canonical headers", func(t *testing.T) {
		t.Parallel()
		csv := "firstName,lastName,company,jobTitle,email\n" +
			"Ana,Lima,Acme,CTO,ana@acme.test\n" +
			"Bo,Chen,Initech,,bo@initech.test\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, placeholder.Recipient{
			FirstName: "Ana", LastName: "Lima", Company: "Acme",
			JobTitle: "CTO", Email: "ana@acme.test",
		}, got[0])
		assert.Empty(t, got[1].JobTitle)
	})

	t.Run("alias headers", func(t *testing.T) {
		t.Parallel()
		csv := "first_name,LastName,companyName,position,Email\n" +
			"Ana,Lima,Acme,CTO,ana@acme.test\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ana", got[0].FirstName)
		assert.Equal(t, "Lima", got[0].LastName)
		assert.Equal(t, "Acme", got[0].Company)
		assert.Equal(t, "CTO", got[0].JobTitle)
		assert.Equal(t, "ana@acme.test", got[0].Email)
	})

	t.Run("unmatched headers ignored", func(t *testing.T) {
		t.Parallel()
		csv := "firstName,favouriteColor\nAna,teal\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ana", got[0].FirstName)
		assert.Empty(t, got[0].Company)
	})

	t.Run("short rows pad with empty", func(t *testing.T) {
		t.Parallel()
		csv := "firstName,lastName,company\nAna\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ana", got[0].FirstName)
		assert.Empty(t, got[0].LastName)
	})

	t.Run("blank lines and CRLF", func(t *testing.T) {
		t.Parallel()
		csv := "firstName,company\r\n\r\nAna,Acme\r\n\r\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Acme", got[0].Company)
	})

	t.Run("no quoting support splits on every comma", func(t *testing.T) {
		t.Parallel()
		csv := "firstName,company\nAna,\"Acme, Inc\"\n"

		got, err := spreadsheet.ParseCSV(csv)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, `"Acme`, got[0].Company)
	})

	t.Run("header-only yields empty list", func(t *testing.T) {
		t.Parallel()
		got, err := spreadsheet.ParseCSV("firstName,lastName\n")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty input is an error", func(t *testing.T) {
		t.Parallel()
		_, err := spreadsheet.ParseCSV("")
		assert.ErrorIs(t, err, spreadsheet.ErrEmptyFile)
	})
}

func TestParse_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("csv by extension", func(t *testing.T) {
		t.Parallel()
		got, err := spreadsheet.Parse("leads.CSV", strings.NewReader("firstName\nAna\n"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ana", got[0].FirstName)
	})

	t.Run("unknown extension rejected", func(t *testing.T) {
		t.Parallel()
		_, err := spreadsheet.Parse("leads.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, spreadsheet.ErrUnknownInput)
	})

	t.Run("garbage xlsx rejected", func(t *testing.T) {
		t.Parallel()
		_, err := spreadsheet.Parse("leads.xlsx", strings.NewReader("not a zip"))
		assert.ErrorIs(t, err, spreadsheet.ErrInvalidXLSX)
	})
}
