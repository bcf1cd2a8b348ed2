package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type UserRole string

const (
	UserRoleGeneral UserRole = "general"
	UserRoleRider   UserRole = "rider"
	UserRoleDriver  UserRole = "driver"
)

// Identity is the authenticated caller supplied by the auth middleware.
type Identity struct {
	UserID primitive.ObjectID
	Role   UserRole
}

func (i Identity) IsDriver() bool {
	return i.Role == UserRoleDriver
}
