package main

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/Gersondiaz03/aasmcbev2/internal/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	m, err := database.NewMigrator(dbUrl)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		check(m.Up())
		log.Println("Migration up successful")
	case "down":
		check(m.Down())
		log.Println("Migration down successful")
	case "steps":
		check(m.Steps(intArg()))
		log.Println("Migration steps successful")
	case "force":
		if err := m.Force(intArg()); err != nil {
			log.Fatal(err)
		}
		log.Println("Migration version forced")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migration applied")
			return
		}
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Migration version %d (dirty=%t)", version, dirty)
	default:
		log.Fatalf("Unknown command %q (use up, down, steps N, force N or version)", cmd)
	}
}

func check(err error) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal(err)
	}
}

func intArg() int {
	if len(os.Args) < 3 {
		log.Fatalf("%s needs a numeric argument", os.Args[1])
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("invalid number %q: %v", os.Args[2], err)
	}
	return n
}
