// Command token mints an access token signed with the server's JWT secret,
// for local testing against a running API.
package main

import (
	"flag"
	"fmt"
	"log"

	"nepway/internal/config"
	"nepway/internal/models"
	"nepway/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	userHex := flag.String("user", "", "user id (hex ObjectID); a new id is generated when empty")
	role := flag.String("role", string(models.UserRoleRider), "user role: rider, driver or general")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	userID := primitive.NewObjectID()
	if *userHex != "" {
		if userID, err = primitive.ObjectIDFromHex(*userHex); err != nil {
			log.Fatalf("Invalid user id %q: %v", *userHex, err)
		}
	}

	switch models.UserRole(*role) {
	case models.UserRoleRider, models.UserRoleDriver, models.UserRoleGeneral:
	default:
		log.Fatalf("Unknown role %q", *role)
	}

	token, err := utils.GenerateAccessToken(userID, *role, cfg.Security.JWTIssuer, cfg.Security.JWTSecret, cfg.Security.JWTAccessTokenTTL)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("user_id=%s role=%s\n%s\n", userID.Hex(), *role, token)
}
