package handler

import (
	"errors"
	"strings"
	"testing"

	"github.com/clientportal/client-service/internal/core/domain"
)

type phoneHolder struct {
	Phone string `validate:"phone_in"`
}

func TestValidator_PhoneIN(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		phone string
		valid bool
	}{
		{"8123456789", true},
		{"+918123456789", true},
		{"08123456789", true},
		{"+91 98765 43210", true},
		{"", false},
		{"12345", false},
		{"5123456789", false},
		{"+14155552671", false},
		{"not a number", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := v.Validate(&phoneHolder{Phone: tt.phone})
			if tt.valid && err != nil {
				t.Fatalf("expected %q to be valid, got %v", tt.phone, err)
			}
			if !tt.valid && !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected %q to be rejected with ErrInvalidInput, got %v", tt.phone, err)
			}
		})
	}
}

func TestValidator_FieldNameIsSnakeCase(t *testing.T) {
	err := NewValidator().Validate(&registerClientRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"first_name is required", "phone_number is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}
