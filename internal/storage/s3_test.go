package storage

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	got := ObjectKey("weekly", at, "abc", ".csv")
	if want := "imports/weekly/2024/03/09/abc.csv"; got != want {
		t.Errorf("ObjectKey() = %q, want %q", got, want)
	}
}

func TestExtensionFor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"text/csv": ".csv",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
		"application/octet-stream": "",
	}
	for ct, want := range tests {
		if got := extensionFor(ct); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", ct, got, want)
		}
	}
}
