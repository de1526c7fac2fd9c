package gstin_test

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/gstin"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"valid_published_example", "27AAPFU0939F1ZV", nil},
		{"valid_karnataka", "29ABCDE1234F1ZW", nil},
		{"valid_delhi", "07UVWXY7890N5ZT", nil},
		{"bad_checksum", "29ABCDE1234F1Z5", gstin.ErrGSTINChecksum},
		{"too_short", "29ABCDE1234F1Z", gstin.ErrGSTINLength},
		{"lowercase_not_normalized", "29abcde1234f1zw", gstin.ErrGSTINFormat},
		{"missing_z", "29ABCDE1234F1AW", gstin.ErrGSTINFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gstin.Validate(tc.in)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestChecksum(t *testing.T) {
	c, err := gstin.Checksum("27AAPFU0939F1Z")
	require.NoError(t, err)
	assert.Equal(t, byte('V'), c)

	_, err = gstin.Checksum("27AAPFU0939F1")
	assert.ErrorIs(t, err, gstin.ErrGSTINLength)

	_, err = gstin.Checksum("27AAPFU0939F1#")
	assert.ErrorIs(t, err, gstin.ErrGSTINFormat)
}

func TestNormalizeGSTIN(t *testing.T) {
	assert.Equal(t, "29ABCDE1234F1ZW", gstin.NormalizeGSTIN("  29abcde1234f1zw "))
	assert.NoError(t, gstin.Validate(gstin.NormalizeGSTIN("29abcde1234f1zw")))
}

func TestStateCodeAndPAN(t *testing.T) {
	assert.Equal(t, "27", gstin.StateCode("27AAPFU0939F1ZV"))
	assert.Equal(t, "AAPFU0939F", gstin.PAN("27AAPFU0939F1ZV"))
	assert.Equal(t, "", gstin.StateCode("2"))
	assert.Equal(t, "", gstin.PAN("27AAP"))
}

func TestNormalizeIRN(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	irn, err := gstin.NormalizeIRN("  " + strings.ToUpper(valid) + " ")
	require.NoError(t, err)
	assert.Equal(t, valid, irn)

	irn, err = gstin.NormalizeIRN("")
	require.NoError(t, err)
	assert.Empty(t, irn)

	_, err = gstin.NormalizeIRN(valid[:63])
	assert.ErrorIs(t, err, gstin.ErrIRNFormat)

	_, err = gstin.NormalizeIRN(strings.Repeat("zz", 32))
	assert.ErrorIs(t, err, gstin.ErrIRNFormat)
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-001", gstin.NormalizeInvoiceNumber(" inv-001 "))
	assert.Equal(t, "INV001", gstin.NormalizeInvoiceNumber("inv 0 01"))
	assert.Equal(t, gstin.NormalizeInvoiceNumber("Inv\t001"), gstin.NormalizeInvoiceNumber("INV001"))
}

func TestDeriveFinancialYear(t *testing.T) {
	tests := []struct {
		date     string
		expected string
	}{
		{"2025-03-01", "2024-25"},
		{"2025-04-01", "2025-26"},
		{"2024-12-15", "2024-25"},
		{"2025-01-15", "2024-25"},
		{"2023-06-30", "2023-24"},
	}
	for _, tc := range tests {
		t.Run(tc.date, func(t *testing.T) {
			d, err := time.Parse(gstin.ISODate, tc.date)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, gstin.DeriveFinancialYear(d))
		})
	}
}

func TestComputeIRNHash(t *testing.T) {
	hash := gstin.ComputeIRNHash("29ABCDE1234F1ZW", "INV-001", "2024-25")

	assert.Len(t, hash, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, hash)

	expected := sha256.Sum256([]byte("29ABCDE1234F1ZW" + "INV-001" + "2024-25"))
	assert.Equal(t, fmt.Sprintf("%x", expected), hash)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.July, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-07-05", "05-07-2024", "05/07/2024", "05.07.2024", "05 Jul 2024", "5 Jul 2024", "05-Jul-2024", "2024-07-05T10:30:00+05:30"} {
		t.Run(in, func(t *testing.T) {
			got, err := gstin.ParseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := gstin.ParseDate("31-31-2024")
		assert.Error(t, err)
	})
}

func TestDaysBetweenAndTaxPeriod(t *testing.T) {
	a := time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.August, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, gstin.DaysBetween(a, b))
	assert.Equal(t, 2, gstin.DaysBetween(b, a))
	assert.Equal(t, 0, gstin.DaysBetween(a, a))
	assert.Equal(t, "072024", gstin.TaxPeriod(a))
}
