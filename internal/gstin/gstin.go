// Package gstin holds the identifier rules shared by every GST return source:
// GSTIN format and checksum, IRN format and derivation, invoice number and date normalization.
package gstin

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const checksumAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	gstinPattern = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	irnPattern   = regexp.MustCompile(`^[0-9a-f]{64}$`)
	whitespace   = regexp.MustCompile(`\s+`)
)

var (
	ErrGSTINLength   = errors.New("gstin must be 15 characters")
	ErrGSTINFormat   = errors.New("gstin does not match expected format")
	ErrGSTINChecksum = errors.New("gstin checksum digit is invalid")
	ErrIRNFormat     = errors.New("irn must be a 64-char hex SHA-256")
)

// NormalizeGSTIN upper-cases and trims a GSTIN without validating it.
func NormalizeGSTIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Checksum computes the 15th character of a GSTIN from its first 14 characters
// (mod-36 Luhn variant used by GSTN).
func Checksum(first14 string) (byte, error) {
	if len(first14) != 14 {
		return 0, ErrGSTINLength
	}
	sum := 0
	for i := 0; i < 14; i++ {
		v := strings.IndexByte(checksumAlphabet, first14[i])
		if v < 0 {
			return 0, ErrGSTINFormat
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		p := v * factor
		sum += p/36 + p%36
	}
	return checksumAlphabet[(36-sum%36)%36], nil
}

// Validate checks length, structure and checksum of an already normalized GSTIN.
func Validate(g string) error {
	if len(g) != 15 {
		return ErrGSTINLength
	}
	if !gstinPattern.MatchString(g) {
		return ErrGSTINFormat
	}
	want, err := Checksum(g[:14])
	if err != nil {
		return err
	}
	if g[14] != want {
		return fmt.Errorf("%w: expected %c, got %c", ErrGSTINChecksum, want, g[14])
	}
	return nil
}

// StateCode returns the 2-digit state prefix of a GSTIN.
func StateCode(g string) string {
	if len(g) < 2 {
		return ""
	}
	return g[:2]
}

// PAN returns the embedded PAN (characters 3-12) of a GSTIN.
func PAN(g string) string {
	if len(g) < 12 {
		return ""
	}
	return g[2:12]
}

// NormalizeIRN lower-cases and trims an IRN and checks its format. Empty input is allowed.
func NormalizeIRN(s string) (string, error) {
	irn := strings.ToLower(strings.TrimSpace(s))
	if irn == "" {
		return "", nil
	}
	if !irnPattern.MatchString(irn) {
		return "", ErrIRNFormat
	}
	return irn, nil
}

// MaxInvoiceNumberLen is the longest document number GST returns accept.
const MaxInvoiceNumberLen = 16

// NormalizeInvoiceNumber upper-cases an invoice number and strips all whitespace,
// so "inv 001" and "INV001" compare equal.
func NormalizeInvoiceNumber(s string) string {
	return whitespace.ReplaceAllString(strings.ToUpper(s), "")
}

// DeriveFinancialYear returns the Indian financial year string (e.g., "2024-25") for a date.
func DeriveFinancialYear(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.April {
		return fmt.Sprintf("%d-%02d", year, (year+1)%100)
	}
	return fmt.Sprintf("%d-%02d", year-1, year%100)
}

// ComputeIRNHash computes the expected IRN as SHA-256(sellerGSTIN + invoiceNumber + fy).
func ComputeIRNHash(sellerGSTIN, invoiceNumber, fy string) string {
	hash := sha256.Sum256([]byte(sellerGSTIN + invoiceNumber + fy))
	return fmt.Sprintf("%x", hash)
}
