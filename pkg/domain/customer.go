package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxCustomerNameLength is the longest customer name accepted.
const MaxCustomerNameLength = 36

// Default values applied to new customers.
const (
	DefaultNetThrottle  = 0
	DefaultOperationTTL = 10
	DefaultQueueTTL     = 10
)

// CPUThrottle limits how much CPU an agent may use while running an operation.
type CPUThrottle string

const (
	CPUThrottleIdle        CPUThrottle = "idle"
	CPUThrottleBelowNormal CPUThrottle = "below_normal"
	CPUThrottleNormal      CPUThrottle = "normal"
	CPUThrottleAboveNormal CPUThrottle = "above_normal"
	CPUThrottleHigh        CPUThrottle = "high"
)

// CPUThrottles lists every accepted throttle level, lowest first.
var CPUThrottles = []CPUThrottle{
	CPUThrottleIdle,
	CPUThrottleBelowNormal,
	CPUThrottleNormal,
	CPUThrottleAboveNormal,
	CPUThrottleHigh,
}

// Valid reports whether t is one of the known throttle levels.
func (t CPUThrottle) Valid() bool {
	for _, v := range CPUThrottles {
		if t == v {
			return true
		}
	}
	return false
}

// ParseCPUThrottle converts s into a CPUThrottle.
func ParseCPUThrottle(s string) (CPUThrottle, error) {
	t := CPUThrottle(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCPUThrottle, s)
	}
	return t, nil
}

// Customer is a tenant: an isolated scope owning users, agents and applications.
type Customer struct {
	Name               string      `json:"customer_name" bson:"_id"`
	PackageDownloadURL string      `json:"package_download_url_base" bson:"package_download_url_base"`
	NetThrottle        int         `json:"net_throttle" bson:"net_throttle"`
	CPUThrottle        CPUThrottle `json:"cpu_throttle" bson:"cpu_throttle"`
	OperationTTL       int         `json:"operation_ttl" bson:"operation_ttl"`
	ServerQueueTTL     int         `json:"server_queue_ttl" bson:"server_queue_ttl"`
	AgentQueueTTL      int         `json:"agent_queue_ttl" bson:"agent_queue_ttl"`
	CreatedAt          time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" bson:"updated_at"`
}

// CustomerUpdate is a partial edit. Nil fields are left untouched.
type CustomerUpdate struct {
	PackageDownloadURL *string
	OperationTTL       *int
	ServerQueueTTL     *int
	AgentQueueTTL      *int
	CPUThrottle        *CPUThrottle
	NetThrottle        *int
}

// IsEmpty returns true if no field is set.
func (u CustomerUpdate) IsEmpty() bool {
	return u.PackageDownloadURL == nil && u.OperationTTL == nil && u.ServerQueueTTL == nil &&
		u.AgentQueueTTL == nil && u.CPUThrottle == nil && u.NetThrottle == nil
}

// Validate checks the values that are set.
func (u CustomerUpdate) Validate() error {
	if u.CPUThrottle != nil && !u.CPUThrottle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCPUThrottle, *u.CPUThrottle)
	}
	if u.NetThrottle != nil && *u.NetThrottle < 0 {
		return ErrInvalidNetThrottle
	}
	for _, ttl := range []*int{u.OperationTTL, u.ServerQueueTTL, u.AgentQueueTTL} {
		if ttl != nil && *ttl <= 0 {
			return ErrInvalidQueueTTL
		}
	}
	return nil
}

// Apply copies the set fields onto c and reports whether anything changed.
func (u CustomerUpdate) Apply(c *Customer) bool {
	changed := false
	if u.PackageDownloadURL != nil && *u.PackageDownloadURL != c.PackageDownloadURL {
		c.PackageDownloadURL = *u.PackageDownloadURL
		changed = true
	}
	if u.OperationTTL != nil && *u.OperationTTL != c.OperationTTL {
		c.OperationTTL = *u.OperationTTL
		changed = true
	}
	if u.ServerQueueTTL != nil && *u.ServerQueueTTL != c.ServerQueueTTL {
		c.ServerQueueTTL = *u.ServerQueueTTL
		changed = true
	}
	if u.AgentQueueTTL != nil && *u.AgentQueueTTL != c.AgentQueueTTL {
		c.AgentQueueTTL = *u.AgentQueueTTL
		changed = true
	}
	if u.CPUThrottle != nil && *u.CPUThrottle != c.CPUThrottle {
		c.CPUThrottle = *u.CPUThrottle
		changed = true
	}
	if u.NetThrottle != nil && *u.NetThrottle != c.NetThrottle {
		c.NetThrottle = *u.NetThrottle
		changed = true
	}
	return changed
}

// CustomerKey names a single customer property.
type CustomerKey string

const (
	CustomerKeyName           CustomerKey = "customer_name"
	CustomerKeyPackageURL     CustomerKey = "package_download_url_base"
	CustomerKeyNetThrottle    CustomerKey = "net_throttle"
	CustomerKeyCPUThrottle    CustomerKey = "cpu_throttle"
	CustomerKeyOperationTTL   CustomerKey = "operation_ttl"
	CustomerKeyServerQueueTTL CustomerKey = "server_queue_ttl"
	CustomerKeyAgentQueueTTL  CustomerKey = "agent_queue_ttl"
)

// Property returns the value stored under key, or false for an unknown key.
func (c *Customer) Property(key CustomerKey) (any, bool) {
	switch key {
	case CustomerKeyName:
		return c.Name, true
	case CustomerKeyPackageURL:
		return c.PackageDownloadURL, true
	case CustomerKeyNetThrottle:
		return c.NetThrottle, true
	case CustomerKeyCPUThrottle:
		return c.CPUThrottle, true
	case CustomerKeyOperationTTL:
		return c.OperationTTL, true
	case CustomerKeyServerQueueTTL:
		return c.ServerQueueTTL, true
	case CustomerKeyAgentQueueTTL:
		return c.AgentQueueTTL, true
	}
	return nil, false
}

// ValidateCustomerName checks the length of a customer name in characters.
func ValidateCustomerName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxCustomerNameLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidCustomerName, MaxCustomerNameLength)
	}
	return nil
}
