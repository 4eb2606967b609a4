package domain

import "fmt"

// Permission is a capability that can be granted through a group.
type Permission string

const (
	PermissionAdministrator    Permission = "administrator"
	PermissionInstall          Permission = "install"
	PermissionUninstall        Permission = "uninstall"
	PermissionReboot           Permission = "reboot"
	PermissionShutdown         Permission = "shutdown"
	PermissionWakeOnLAN        Permission = "wol"
	PermissionSnapshotCreation Permission = "snapshot_creation"
	PermissionSnapshotRevert   Permission = "snapshot_revert"
	PermissionTagging          Permission = "tagging"
	PermissionRemoteAssistance Permission = "remote_assistance"
)

// Permissions lists every known capability.
var Permissions = []Permission{
	PermissionAdministrator,
	PermissionInstall,
	PermissionUninstall,
	PermissionReboot,
	PermissionShutdown,
	PermissionWakeOnLAN,
	PermissionSnapshotCreation,
	PermissionSnapshotRevert,
	PermissionTagging,
	PermissionRemoteAssistance,
}

// Valid reports whether p is a known capability.
func (p Permission) Valid() bool {
	for _, v := range Permissions {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePermissions converts raw strings into permissions, rejecting unknown values.
func ParsePermissions(raw []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(raw))
	for _, s := range raw {
		p := Permission(s)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPermission, s)
		}
		perms = append(perms, p)
	}
	return perms, nil
}
