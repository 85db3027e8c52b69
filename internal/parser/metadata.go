package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// infoFields maps document information keys to metadata keys.
var infoFields = []struct {
	pdfKey string
	key    string
	date   bool
}{
	{"Title", "title", false},
	{"Author", "author", false},
	{"Subject", "subject", false},
	{"Creator", "creator", false},
	{"Producer", "producer", false},
	{"CreationDate", "creation_date", true},
	{"ModDate", "modification_date", true},
}

// extractMetadata reads the trailer's /Info dictionary. A field that cannot
// be read is left out; the function never fails.
func extractMetadata(r *pdf.Reader) map[string]string {
	meta := make(map[string]string)
	for _, f := range infoFields {
		v := infoValue(r, f.pdfKey)
		if v == "" {
			continue
		}
		if f.date {
			if t, ok := parseDate(v); ok {
				v = t.Format(time.RFC3339)
			}
		}
		meta[f.key] = v
	}
	return meta
}

func infoValue(r *pdf.Reader, key string) (v string) {
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	return strings.TrimSpace(r.Trailer().Key("Info").Key(key).Text())
}

// parseDate parses a PDF date string such as D:20240131104500+02'00'.
// Missing trailing components default to their minimum.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")

	digits := 0
	for digits < len(s) && digits < 14 && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits < 4 || digits%2 != 0 {
		return time.Time{}, false
	}

	parts := [6]int{0, 1, 1, 0, 0, 0}
	parts[0], _ = strconv.Atoi(s[:4])
	for i, pos := 1, 4; pos < digits; i, pos = i+1, pos+2 {
		parts[i], _ = strconv.Atoi(s[pos : pos+2])
	}
	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 ||
		parts[3] > 23 || parts[4] > 59 || parts[5] > 59 {
		return time.Time{}, false
	}

	loc, ok := parseZone(s[digits:])
	if !ok {
		return time.Time{}, false
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, loc), true
}

// parseZone parses the O HH'mm' suffix of a PDF date.
func parseZone(z string) (*time.Location, bool) {
	z = strings.TrimSpace(z)
	if z == "" || z == "Z" || strings.HasPrefix(z, "Z0") {
		return time.UTC, true
	}
	sign := 1
	switch z[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, false
	}
	rest := strings.ReplaceAll(z[1:], "'", "")
	if len(rest) != 2 && len(rest) != 4 {
		return nil, false
	}
	hh, err := strconv.Atoi(rest[:2])
	if err != nil || hh > 23 {
		return nil, false
	}
	mm := 0
	if len(rest) == 4 {
		if mm, err = strconv.Atoi(rest[2:]); err != nil || mm > 59 {
			return nil, false
		}
	}
	return time.FixedZone("", sign*(hh*3600+mm*60)), true
}
