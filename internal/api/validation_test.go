package api

import (
	"strings"
	"testing"
)

type validationTestPayload struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=user artisan"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "valid",
			body: `{"name":"Ada","email":"ada@example.com"}`,
		},
		{
			name:    "malformed_json",
			body:    `{"name":`,
			wantErr: "invalid JSON body",
		},
		{
			name:    "unknown_field",
			body:    `{"name":"Ada","email":"ada@example.com","admin":true}`,
			wantErr: "invalid JSON body",
		},
		{
			name:    "trailing_data",
			body:    `{"name":"Ada","email":"ada@example.com"}{}`,
			wantErr: "invalid JSON body",
		},
		{
			name:    "missing_required",
			body:    `{"email":"ada@example.com"}`,
			wantErr: "name is required",
		},
		{
			name:    "bad_email",
			body:    `{"name":"Ada","email":"not-an-email"}`,
			wantErr: "invalid email format",
		},
		{
			name:    "too_short",
			body:    `{"name":"A","email":"ada@example.com"}`,
			wantErr: "name is too short",
		},
		{
			name:    "bad_enum",
			body:    `{"name":"Ada","email":"ada@example.com","role":"root"}`,
			wantErr: "invalid role value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst validationTestPayload
			err := decodeAndValidate(strings.NewReader(tt.body), &dst)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeAndValidate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("decodeAndValidate() error = nil, want error")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("decodeAndValidate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}
