// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

package validation

import (
	"strings"
	"testing"
)

type ipLabelRequest struct {
	IPAddress string `validate:"required,ip"`
	Label     string `validate:"required,min=1,max=120"`
	Note      string `validate:"omitempty,max=500"`
}

type listRequest struct {
	Limit  int    `validate:"min=1,max=500"`
	Offset int    `validate:"min=0"`
	Email  string `validate:"omitempty,email"`
}

func TestValidateStructSuccess(t *testing.T) {
	req := ipLabelRequest{IPAddress: "203.0.113.7", Label: "office"}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{
			name:      "missing ip",
			input:     &ipLabelRequest{Label: "office"},
			wantField: "IPAddress",
			wantTag:   "required",
		},
		{
			name:      "malformed ip",
			input:     &ipLabelRequest{IPAddress: "not-an-ip", Label: "office"},
			wantField: "IPAddress",
			wantTag:   "ip",
		},
		{
			name:      "missing label",
			input:     &ipLabelRequest{IPAddress: "203.0.113.7"},
			wantField: "Label",
			wantTag:   "required",
		},
		{
			name:      "limit too large",
			input:     &listRequest{Limit: 10000},
			wantField: "Limit",
			wantTag:   "max",
		},
		{
			name:      "bad email filter",
			input:     &listRequest{Limit: 10, Email: "nope"},
			wantField: "Email",
			wantTag:   "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}

			found := false
			for _, fe := range err.Errors() {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v missing field=%s tag=%s", err.Errors(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single error carries field details", func(t *testing.T) {
		err := ValidateStruct(&ipLabelRequest{IPAddress: "203.0.113.7"})
		if err == nil {
			t.Fatal("expected validation error")
		}

		apiErr := err.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		if apiErr.Details["field"] != "Label" {
			t.Errorf("Details[field] = %v, want Label", apiErr.Details["field"])
		}
	})

	t.Run("multiple errors list all fields", func(t *testing.T) {
		err := ValidateStruct(&ipLabelRequest{})
		if err == nil {
			t.Fatal("expected validation error")
		}

		apiErr := err.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Errorf("Details[fields] = %v, want 2 entries", apiErr.Details["fields"])
		}
		if !strings.Contains(apiErr.Message, "IPAddress") || !strings.Contains(apiErr.Message, "Label") {
			t.Errorf("Message = %q, want both field names", apiErr.Message)
		}
	})
}
