package ioengine

import (
	"errors"
	"testing"
)

func TestReadErrorIsErrRead(t *testing.T) {
	err := NewReadError(AffectedDataset, ReasonNotFound, "jsonfile", "no such dataset")
	if !errors.Is(err, ErrRead) {
		t.Errorf("ReadError should unwrap to ErrRead")
	}
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("errors.As(*ReadError) failed")
	}
	if re.Object != AffectedDataset || re.Reason != ReasonNotFound {
		t.Errorf("unexpected fields: %+v", re)
	}
}

func TestWrongAPIUsageFormatsDescription(t *testing.T) {
	err := NewWrongAPIUsage("attribute %q already committed", "unitSI")
	if !errors.Is(err, ErrWrongAPIUsage) {
		t.Errorf("WrongAPIUsageError should unwrap to ErrWrongAPIUsage")
	}
	if got := err.Error(); got != `wrong API usage: attribute "unitSI" already committed` {
		t.Errorf("Error() = %q", got)
	}
}

func TestOperationUnsupportedCarriesBackend(t *testing.T) {
	err := NewOperationUnsupported("jsonfile", "deletion of %s", "paths")
	if !errors.Is(err, ErrOperationUnsupported) {
		t.Errorf("should unwrap to ErrOperationUnsupported")
	}
	if err.Backend != "jsonfile" {
		t.Errorf("Backend = %q, want jsonfile", err.Backend)
	}
}

func TestBackendConfigSchemaErrorLocation(t *testing.T) {
	err := NewBackendConfigSchema([]string{"jsonfile", "compression", "level"}, "expected an integer")
	if !errors.Is(err, ErrBackendConfigSchema) {
		t.Errorf("should unwrap to ErrBackendConfigSchema")
	}
	want := `wrong JSON/TOML schema at index "jsonfile.compression.level": expected an integer`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseAndInternalErrors(t *testing.T) {
	if !errors.Is(NewParseError("bad filename %q", "x"), ErrParse) {
		t.Errorf("ParseErr should unwrap to ErrParse")
	}
	if !errors.Is(NewInternalError("invariant violated"), ErrInternal) {
		t.Errorf("InternalError should unwrap to ErrInternal")
	}
}

func TestDistinctErrorKindsDoNotMatch(t *testing.T) {
	err := NewReadError(AffectedFile, ReasonInaccessible, "", "permission denied")
	if errors.Is(err, ErrWrongAPIUsage) {
		t.Errorf("ReadError must not match ErrWrongAPIUsage")
	}
}
