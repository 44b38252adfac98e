// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string `validate:"required"`
	Limit int    `validate:"min=1,max=10"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{Name: "a", Limit: 5}, ""},
		{"missing name", sample{Limit: 5}, "sample.Name failed required"},
		{"limit too high", sample{Name: "a", Limit: 11}, "sample.Limit failed max=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T (%v)", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEventNameTag(t *testing.T) {
	t.Parallel()

	type query struct {
		EventName string `validate:"omitempty,event_name"`
	}
	tests := []struct {
		in    string
		valid bool
	}{
		{"", true},
		{"Long Queue Length", true},
		{"Weight Discrepancies", true},
		{"long queue length", false},
		{"Shoplifting", false},
	}
	for _, tt := range tests {
		err := ValidateStruct(&query{EventName: tt.in})
		if (err == nil) != tt.valid {
			t.Errorf("%q: err = %v, want valid=%v", tt.in, err, tt.valid)
		}
	}
}
