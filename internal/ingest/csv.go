package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
)

// Required CSV columns. Header names are matched case-insensitively.
const (
	colPolicyNumber   = "policy_number"
	colExpirationDate = "expiration_date"
)

// Optional CSV columns.
const (
	colCarrierName    = "carrier_name"
	colLineOfBusiness = "line_of_business"
	colCustomerID     = "customer_id"
	colPolicyID       = "policy_id"
)

var csvDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// CSVSource reads an AMS export of in-force policies, one row per policy.
// A policy's expiration date is its renewal effective date.
type CSVSource struct {
	Path      string
	Delimiter rune
}

// ExpiringPolicies returns the policies expiring in [from, to].
func (s *CSVSource) ExpiringPolicies(ctx context.Context, tenantID string, from, to time.Time) ([]renewal.IngestRequest, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", s.Path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(ctx, f, s.Delimiter, tenantID, from, to)
}

// ReadCSV parses policies from r and keeps those expiring in [from, to].
// Rows that cannot be parsed fail the whole read with their line number.
func ReadCSV(ctx context.Context, r io.Reader, delimiter rune, tenantID string, from, to time.Time) ([]renewal.IngestRequest, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colPolicyNumber, colExpirationDate} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("ingest: csv missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	from, to = dateOf(from), dateOf(to)
	var out []renewal.IngestRequest
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ingest: context cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read csv line %d", line)
		}
		policy := field(row, colPolicyNumber)
		if policy == "" {
			continue
		}

		exp, err := parseCSVDate(field(row, colExpirationDate))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: line %d", line)
		}
		if exp.Before(from) || exp.After(to) {
			continue
		}

		var lob model.LineOfBusiness
		if raw := field(row, colLineOfBusiness); raw != "" {
			if lob, err = model.ParseLineOfBusiness(raw); err != nil {
				return nil, eris.Wrapf(err, "ingest: line %d", line)
			}
		}

		out = append(out, renewal.IngestRequest{
			TenantID:             tenantID,
			PolicyNumber:         policy,
			CarrierName:          field(row, colCarrierName),
			LineOfBusiness:       lob,
			RenewalEffectiveDate: exp,
			CustomerID:           field(row, colCustomerID),
			PolicyID:             field(row, colPolicyID),
		})
	}
	return out, nil
}

func parseCSVDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("ingest: unparseable expiration date %q", s)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
