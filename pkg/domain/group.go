package domain

import "time"

// AdministratorGroupName is the group that carries the admin account's capability in each customer.
const AdministratorGroupName = "Administrator"

// Group grants a set of permissions to its members within one customer.
type Group struct {
	ID           string       `json:"group_id" bson:"_id"`
	Name         string       `json:"group_name" bson:"group_name"`
	CustomerName string       `json:"customer_name" bson:"customer_name"`
	Permissions  []Permission `json:"permissions" bson:"permissions"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
}

// Grants reports whether the group carries perm, directly or through administrator.
func (g *Group) Grants(perm Permission) bool {
	for _, p := range g.Permissions {
		if p == perm || p == PermissionAdministrator {
			return true
		}
	}
	return false
}
