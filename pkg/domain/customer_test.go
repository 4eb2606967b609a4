package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCPUThrottle(t *testing.T) {
	for _, v := range CPUThrottles {
		got, err := ParseCPUThrottle(string(v))
		if err != nil {
			t.Errorf("ParseCPUThrottle(%q) unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("ParseCPUThrottle(%q) = %q", v, got)
		}
	}

	if _, err := ParseCPUThrottle("turbo"); !errors.Is(err, ErrInvalidCPUThrottle) {
		t.Errorf("ParseCPUThrottle(turbo) error = %v, want ErrInvalidCPUThrottle", err)
	}
}

func TestValidateCustomerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "default", input: "default", wantErr: false},
		{name: "maximum length", input: strings.Repeat("c", MaxCustomerNameLength), wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("c", MaxCustomerNameLength+1), wantErr: true},
		{name: "multibyte within limit", input: strings.Repeat("客", MaxCustomerNameLength), wantErr: false},
		{name: "multibyte too long", input: strings.Repeat("客", MaxCustomerNameLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCustomerName(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateCustomerName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCustomerUpdate_ApplyAndValidate(t *testing.T) {
	c := &Customer{
		Name:         "acme",
		CPUThrottle:  CPUThrottleNormal,
		OperationTTL: 10,
	}

	high := CPUThrottleHigh
	ttl := 10
	update := CustomerUpdate{CPUThrottle: &high, OperationTTL: &ttl}
	if err := update.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if !update.Apply(c) {
		t.Fatal("Apply() should report a change")
	}
	if c.CPUThrottle != CPUThrottleHigh {
		t.Errorf("CPUThrottle = %q, want %q", c.CPUThrottle, CPUThrottleHigh)
	}
	if update.Apply(c) {
		t.Error("second Apply() should report no change")
	}

	negative := -1
	if err := (CustomerUpdate{NetThrottle: &negative}).Validate(); !errors.Is(err, ErrInvalidNetThrottle) {
		t.Errorf("negative net throttle error = %v", err)
	}
	zero := 0
	if err := (CustomerUpdate{AgentQueueTTL: &zero}).Validate(); !errors.Is(err, ErrInvalidQueueTTL) {
		t.Errorf("zero ttl error = %v", err)
	}
	bogus := CPUThrottle("turbo")
	if err := (CustomerUpdate{CPUThrottle: &bogus}).Validate(); !errors.Is(err, ErrInvalidCPUThrottle) {
		t.Errorf("bogus throttle error = %v", err)
	}
}

func TestGroup_Grants(t *testing.T) {
	admin := &Group{Permissions: []Permission{PermissionAdministrator}}
	installer := &Group{Permissions: []Permission{PermissionInstall}}

	if !admin.Grants(PermissionReboot) {
		t.Error("administrator should imply reboot")
	}
	if !installer.Grants(PermissionInstall) {
		t.Error("installer should grant install")
	}
	if installer.Grants(PermissionAdministrator) {
		t.Error("installer should not grant administrator")
	}
}

func TestParsePermissions(t *testing.T) {
	perms, err := ParsePermissions([]string{"administrator", "reboot"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perms) != 2 || perms[1] != PermissionReboot {
		t.Errorf("ParsePermissions() = %v", perms)
	}
	if _, err := ParsePermissions([]string{"fly"}); !errors.Is(err, ErrInvalidPermission) {
		t.Errorf("unknown permission error = %v", err)
	}
}
