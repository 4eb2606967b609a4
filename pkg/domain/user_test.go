package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{
			name:     "simple",
			username: "bob",
			wantErr:  false,
		},
		{
			name:     "with dot underscore and hyphen",
			username: "bob.smith_2-x",
			wantErr:  false,
		},
		{
			name:     "maximum length",
			username: strings.Repeat("a", MaxUsernameLength),
			wantErr:  false,
		},
		{
			name:     "empty",
			username: "",
			wantErr:  true,
		},
		{
			name:     "too long",
			username: strings.Repeat("a", MaxUsernameLength+1),
			wantErr:  true,
		},
		{
			name:     "leading dot",
			username: ".bob",
			wantErr:  true,
		},
		{
			name:     "contains space",
			username: "bob smith",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidUsername) {
				t.Errorf("error should wrap ErrInvalidUsername, got %v", err)
			}
		})
	}
}

func TestUserUpdate_Apply(t *testing.T) {
	user := &User{Username: "bob", FullName: "Bob", Email: "bob@example.com", CurrentCustomer: "default"}

	if (UserUpdate{}).Apply(user) {
		t.Error("empty update should not report a change")
	}

	same := "Bob"
	if (UserUpdate{FullName: &same}).Apply(user) {
		t.Error("identical full name should not report a change")
	}

	email := "robert@example.com"
	if !(UserUpdate{Email: &email}).Apply(user) {
		t.Error("new email should report a change")
	}
	if user.Email != email {
		t.Errorf("Email = %q, want %q", user.Email, email)
	}
}

func TestUser_Property(t *testing.T) {
	user := &User{Username: "bob", Enabled: true, CurrentCustomer: "acme"}

	v, ok := user.Property(UserKeyCurrentCustomer)
	if !ok || v != "acme" {
		t.Errorf("Property(current_customer) = %v, %v", v, ok)
	}
	v, ok = user.Property(UserKeyEnabled)
	if !ok || v != true {
		t.Errorf("Property(enabled) = %v, %v", v, ok)
	}
	if _, ok := user.Property("shoe_size"); ok {
		t.Error("unknown key should not be found")
	}
}
