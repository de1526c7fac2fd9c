package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gstrecon/internal/domain"
)

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a run label for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "reconciliation"
	}
	return s
}

// BuildFilename returns {label}_mismatches_{YYYY-MM-DD}.{format}.
func BuildFilename(label string, format domain.ExportFormat, at time.Time) string {
	return fmt.Sprintf("%s_mismatches_%s.%s", SanitizeFilename(label), at.Format("2006-01-02"), format)
}

// ContentType returns the MIME type of a report format.
func ContentType(format domain.ExportFormat) string {
	if format == domain.ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat validates a requested format; empty means CSV.
func ParseFormat(s string) (domain.ExportFormat, error) {
	switch domain.ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", domain.ExportCSV:
		return domain.ExportCSV, nil
	case domain.ExportXLSX:
		return domain.ExportXLSX, nil
	default:
		return "", domain.ErrInvalidExportFormat
	}
}
