package vfs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindVolumeNotMounted, http.StatusBadRequest},
		{KindItemExists, http.StatusBadRequest},
		{KindNoFileUploaded, http.StatusBadRequest},
		{KindPathNotFound, http.StatusNotFound},
		{KindDirectoryNotFound, http.StatusNotFound},
		{KindAccessDenied, http.StatusForbidden},
		{KindCorruptSession, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("kind %d: status %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	err := newError(KindPathNotFound, "docs/gone.txt", nil)
	if KindOf(err) != KindPathNotFound {
		t.Errorf("KindOf = %d", KindOf(err))
	}

	// Wrapped errors still classify.
	wrapped := fmt.Errorf("handling request: %w", err)
	if KindOf(wrapped) != KindPathNotFound {
		t.Errorf("wrapped KindOf = %d", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindPathNotFound) {
		t.Error("IsKind failed on wrapped error")
	}

	// Foreign errors fall back to internal.
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain error did not classify as internal")
	}
}

func TestErrorMessage(t *testing.T) {
	err := newError(KindAccessDenied, "../etc", nil)
	want := "access denied: ../etc"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
