package registration

// ImportStatus is one successful CSV row, tagged with its 1-based physical
// line number in the input.
type ImportStatus struct {
	Line      int    `json:"line"`
	SubjectID string `json:"subjectId"`
	Token     string `json:"token"`
}

// BulkImportResult aggregates per-line outcomes of a batch import so the
// caller can render "imported 42 of 45; see 3 line errors" instead of an
// all-or-nothing failure.
type BulkImportResult struct {
	Imported int            `json:"imported"`
	Failed   int            `json:"failed"`
	Statuses []ImportStatus `json:"statuses"`
	Errors   []string       `json:"errors"`
}
