package registration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/geocoder89/surveyhub/internal/domain/subject"
)

// CSV column order: departmentId,firstName,lastName,middleName,dob,email
// with phone and externalId as optional trailing fields.
const minFields = 6

const maxLineBytes = 1024 * 1024

// SingleRegistrar lets the importer delegate each parsed row; tests swap in
// a fake.
type SingleRegistrar interface {
	Register(ctx context.Context, req subject.AddRequest) (Result, error)
}

type Importer struct {
	registrar SingleRegistrar
}

func NewImporter(registrar SingleRegistrar) *Importer {
	return &Importer{registrar: registrar}
}

// ImportBatch parses the CSV payload line by line, in input order, and
// registers each data row. Per-row failures are folded into the result as
// "Line {n}: {message}" entries and never abort the remaining lines; only a
// failure of the input stream itself is fatal. Line numbers are 1-based
// physical positions, counting skipped blank and comment lines.
//
// Each successful row commits on its own: a bad row never rolls back the
// rows registered before it.
func (imp *Importer) ImportBatch(ctx context.Context, surveyID int64, r io.Reader) (BulkImportResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out BulkImportResult

	line := 0

	for sc.Scan() {
		line++

		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		req, err := parseRow(surveyID, raw)

		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("Line %d: %s", line, err))
			out.Failed++
			continue
		}

		res, err := imp.registrar.Register(ctx, req)

		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("Line %d: %s", line, err))
			out.Failed++
			continue
		}

		out.Statuses = append(out.Statuses, ImportStatus{
			Line:      line,
			SubjectID: res.SubjectID,
			Token:     res.Token,
		})
		out.Imported++
	}

	if err := sc.Err(); err != nil {
		return BulkImportResult{}, fmt.Errorf("read csv stream: %w", err)
	}

	return out, nil
}

func parseRow(surveyID int64, line string) (subject.AddRequest, error) {
	fields := splitFields(line)

	if len(fields) < minFields {
		return subject.AddRequest{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}

	deptRaw := strings.TrimSpace(fields[0])
	deptID, err := strconv.ParseInt(deptRaw, 10, 64)

	if err != nil {
		return subject.AddRequest{}, fmt.Errorf("department id %q is not a number", deptRaw)
	}

	req := subject.AddRequest{
		SurveyID:     surveyID,
		DepartmentID: deptID,
		FirstName:    strings.TrimSpace(fields[1]),
		LastName:     strings.TrimSpace(fields[2]),
		MiddleName:   strings.TrimSpace(fields[3]),
		DateOfBirth:  strings.TrimSpace(fields[4]),
		Email:        strings.TrimSpace(fields[5]),
	}

	if len(fields) > 6 {
		req.Phone = strings.TrimSpace(fields[6])
	}
	if len(fields) > 7 {
		req.ExternalID = strings.TrimSpace(fields[7])
	}

	if req.FirstName == "" {
		return subject.AddRequest{}, subject.ErrFirstNameBlank
	}
	if req.LastName == "" {
		return subject.AddRequest{}, subject.ErrLastNameBlank
	}
	if req.Email == "" {
		return subject.AddRequest{}, fmt.Errorf("email is required")
	}
	if req.DateOfBirth != "" {
		if _, err := subject.ParseDOB(req.DateOfBirth); err != nil {
			return subject.AddRequest{}, err
		}
	}

	return req, nil
}

// splitFields is a single-pass scanner with an inside-quotes flag. A quote
// toggles the flag and is never written to the output, so the doubled-quote
// escape of RFC 4180 is NOT supported: `""` inside a quoted field reads as
// two toggles, not a literal quote. A comma outside quotes terminates the
// field; everything else is appended as-is.
func splitFields(line string) []string {
	var fields []string
	var buf strings.Builder

	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}

	fields = append(fields, buf.String())

	return fields
}
