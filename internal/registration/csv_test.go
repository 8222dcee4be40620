package registration

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/geocoder89/surveyhub/internal/domain/subject"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain",
			line: "John,Doe,30",
			want: []string{"John", "Doe", "30"},
		},
		{
			name: "quoted_comma",
			line: `John,Doe,"123 Main, Apt 5",30`,
			want: []string{"John", "Doe", "123 Main, Apt 5", "30"},
		},
		{
			name: "empty_fields",
			line: "a,,b,",
			want: []string{"a", "", "b", ""},
		},
		{
			name: "single_field",
			line: "solo",
			want: []string{"solo"},
		},
		{
			name: "empty_line",
			line: "",
			want: []string{""},
		},
		{
			// doubled quotes are two toggles, not an escaped literal
			// quote; the quotes simply vanish from the output
			name: "doubled_quote_limitation",
			line: `Smith,"Jane ""JJ"" Middle",x`,
			want: []string{"Smith", "Jane JJ Middle", "x"},
		},
		{
			name: "unterminated_quote_swallows_commas",
			line: `a,"b,c`,
			want: []string{"a", "b,c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitFields(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitFields(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{
			name: "full_row",
			line: "10,Grace,Hopper,Brewster,1906-12-09,grace@example.org,+1555000,EMP-1",
		},
		{
			name: "minimal_row",
			line: "10,Grace,Hopper,,,grace@example.org",
		},
		{
			name: "us_date_format",
			line: "10,Grace,Hopper,,12/09/1906,grace@example.org",
		},
		{
			name:    "too_few_fields",
			line:    "10,Grace,Hopper",
			wantErr: "at least 6 fields",
		},
		{
			name:    "department_not_numeric",
			line:    "radiology,Grace,Hopper,,,grace@example.org",
			wantErr: "is not a number",
		},
		{
			name:    "blank_last_name",
			line:    "10,Grace, ,,,grace@example.org",
			wantErr: "last name is required",
		},
		{
			name:    "blank_email",
			line:    "10,Grace,Hopper,,,  ",
			wantErr: "email is required",
		},
		{
			name:    "bad_date_both_formats",
			line:    "10,Grace,Hopper,,15-05-1990,grace@example.org",
			wantErr: "unrecognized date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseRow(1, tt.line)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseRow error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("parseRow: %v", err)
			}
			if req.DepartmentID != 10 || req.FirstName != "Grace" || req.LastName != "Hopper" {
				t.Fatalf("unexpected request: %+v", req)
			}
		})
	}
}

func TestParseDOBFormatsAgree(t *testing.T) {
	iso, err := subject.ParseDOB("1990-05-15")
	if err != nil {
		t.Fatalf("iso format: %v", err)
	}

	us, err := subject.ParseDOB("05/15/1990")
	if err != nil {
		t.Fatalf("us format: %v", err)
	}

	if !iso.Equal(us) {
		t.Fatalf("formats disagree: %v vs %v", iso, us)
	}
	if iso.Year() != 1990 || iso.Month() != 5 || iso.Day() != 15 {
		t.Fatalf("parsed wrong date: %v", iso)
	}
}

// fake registrar so importer tests control per-row outcomes

type fakeRegistrar struct {
	calls []subject.AddRequest
	fn    func(req subject.AddRequest) (Result, error)
}

func (f *fakeRegistrar) Register(_ context.Context, req subject.AddRequest) (Result, error) {
	f.calls = append(f.calls, req)
	if f.fn != nil {
		return f.fn(req)
	}
	return Result{SubjectID: "sub-" + req.FirstName, Token: "tok"}, nil
}

func TestImportBatchLineAccounting(t *testing.T) {
	// 5 physical lines: data, comment, blank, bad row, data
	payload := strings.Join([]string{
		"10,Grace,Hopper,,1906-12-09,grace@example.org",
		"# roster export 2026-03-01",
		"   ",
		"10,Alan,,,, alan@example.org",
		"10,Ada,Lovelace,,,ada@example.org",
	}, "\n")

	reg := &fakeRegistrar{}
	imp := NewImporter(reg)

	res, err := imp.ImportBatch(context.Background(), 1, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}

	// 3 data-row outcomes: 2 successes + 1 error
	if res.Imported != 2 || res.Failed != 1 {
		t.Fatalf("imported=%d failed=%d, want 2/1", res.Imported, res.Failed)
	}
	if len(res.Statuses) != 2 || len(res.Errors) != 1 {
		t.Fatalf("statuses=%d errors=%d, want 2/1", len(res.Statuses), len(res.Errors))
	}

	// line numbers are 1-based physical positions including skipped lines
	if res.Statuses[0].Line != 1 || res.Statuses[1].Line != 5 {
		t.Fatalf("status lines = %d,%d, want 1,5", res.Statuses[0].Line, res.Statuses[1].Line)
	}
	if !strings.HasPrefix(res.Errors[0], "Line 4: ") {
		t.Fatalf("error = %q, want Line 4 prefix", res.Errors[0])
	}

	// the bad row never reached the registrar
	if len(reg.calls) != 2 {
		t.Fatalf("registrar called %d times, want 2", len(reg.calls))
	}
}

func TestImportBatchRowErrorsDoNotAbort(t *testing.T) {
	payload := strings.Join([]string{
		"10,One,Person,,,one@example.org",
		"10,Two,Person,,,two@example.org",
		"10,Three,Person,,,three@example.org",
	}, "\n")

	reg := &fakeRegistrar{
		fn: func(req subject.AddRequest) (Result, error) {
			if req.FirstName == "Two" {
				return Result{}, errors.New("department id 10 does not exist")
			}
			return Result{SubjectID: "s", Token: "t"}, nil
		},
	}

	imp := NewImporter(reg)

	res, err := imp.ImportBatch(context.Background(), 1, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}

	if res.Imported != 2 || res.Failed != 1 {
		t.Fatalf("imported=%d failed=%d, want 2/1", res.Imported, res.Failed)
	}
	if want := "Line 2: department id 10 does not exist"; res.Errors[0] != want {
		t.Fatalf("error = %q, want %q", res.Errors[0], want)
	}

	// all three rows were attempted, in input order
	if len(reg.calls) != 3 || reg.calls[2].FirstName != "Three" {
		t.Fatalf("rows not processed in order: %+v", reg.calls)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream reset")
}

func TestImportBatchStreamFailureIsFatal(t *testing.T) {
	imp := NewImporter(&fakeRegistrar{})

	_, err := imp.ImportBatch(context.Background(), 1, io.Reader(failingReader{}))
	if err == nil || !strings.Contains(err.Error(), "stream reset") {
		t.Fatalf("got %v, want wrapped stream error", err)
	}
}

func TestImportBatchQuotedFieldsReachRegistrar(t *testing.T) {
	payload := `10,"Doe, Jr.",Smith,,,doe@example.org`

	reg := &fakeRegistrar{}
	imp := NewImporter(reg)

	res, err := imp.ImportBatch(context.Background(), 1, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if res.Imported != 1 {
		t.Fatalf("imported=%d, want 1", res.Imported)
	}
	if reg.calls[0].FirstName != "Doe, Jr." {
		t.Fatalf("first name = %q, want quoted value preserved", reg.calls[0].FirstName)
	}
}
