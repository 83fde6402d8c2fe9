package services_test

import (
	"errors"
	"strings"
	"testing"

	"podium/internal/services"
)

func TestWrapCarriesMarkerAndDetail(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "speech", "transcribe", "upload failed", cause)

	if !services.IsTransient(err) {
		t.Fatal("expected transient classification")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive")
	}
	msg := err.Error()
	for _, want := range []string{"speech", "transcribe", "upload failed", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "feedback", "generate", "", nil)
	if !services.IsTransient(err) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassifierHelpers(t *testing.T) {
	cases := []struct {
		marker error
		check  func(error) bool
	}{
		{services.ErrConfiguration, services.IsConfiguration},
		{services.ErrTransient, services.IsTransient},
		{services.ErrMalformed, services.IsMalformed},
		{services.ErrNotFound, services.IsNotFound},
		{services.ErrNotReady, services.IsNotReady},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if !tc.check(err) {
			t.Fatalf("marker %v not detected by its helper", tc.marker)
		}
	}
	if services.IsTransient(services.Wrap(services.ErrConfiguration, "s", "o", "m", nil)) {
		t.Fatal("configuration error misclassified as transient")
	}
}
