// Command main seeds demo users for local development.
package main

import (
	"flag"
	"log"

	"telederm/internal/config"
	"telederm/internal/database"
	"telederm/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	Username    string
	Email       string
	DisplayName string
	Role        string
}

var demoUsers = []seedUser{
	{Username: "dr.reyes", Email: "reyes@telederm.local", DisplayName: "Dr. Ana Reyes", Role: models.RoleDoctor},
	{Username: "dr.okafor", Email: "okafor@telederm.local", DisplayName: "Dr. Sam Okafor", Role: models.RoleDoctor},
	{Username: "pat.jordan", Email: "jordan@telederm.local", DisplayName: "Jordan Lee", Role: models.RolePatient},
	{Username: "pat.morgan", Email: "morgan@telederm.local", DisplayName: "Morgan Diaz", Role: models.RolePatient},
}

func main() {
	password := flag.String("password", "telederm-dev", "Password assigned to every seeded user")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	for _, su := range demoUsers {
		user := models.User{
			Username:    su.Username,
			Email:       su.Email,
			Password:    string(hash),
			DisplayName: su.DisplayName,
			Role:        su.Role,
		}
		res := db.Where("username = ?", su.Username).FirstOrCreate(&user)
		if res.Error != nil {
			log.Fatalf("Failed to seed user %s: %v", su.Username, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Printf("Created %s (%s) with ID %d", su.DisplayName, su.Role, user.ID)
		} else {
			log.Printf("User %s already exists with ID %d", su.Username, user.ID)
		}
	}

	log.Println("Seeding complete")
}
