package model

import "strings"

// TargetType is the kind of identifier being investigated.
type TargetType string

const (
	TargetUsername TargetType = "username"
	TargetEmail    TargetType = "email"
	TargetPhone    TargetType = "phone"
	TargetDomain   TargetType = "domain"
	TargetIP       TargetType = "ip"
	TargetEntity   TargetType = "entity"
)

// AllTargetTypes lists every accepted target type in declaration order.
var AllTargetTypes = []TargetType{
	TargetUsername, TargetEmail, TargetPhone, TargetDomain, TargetIP, TargetEntity,
}

// ParseTargetType returns the TargetType for s, case-insensitively.
func ParseTargetType(s string) (TargetType, bool) {
	t := TargetType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTargetTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

func (t TargetType) Valid() bool {
	_, ok := ParseTargetType(string(t))
	return ok
}

func (t TargetType) String() string { return string(t) }
