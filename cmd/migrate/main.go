package main

import (
	"flag"
	"log"

	"visitordesk/internal/config"
	"visitordesk/internal/store"
)

func main() {
	dsn := flag.String("dsn", "", "database URL (defaults to DATABASE_URL)")
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	url := *dsn
	if url == "" {
		url = config.Load().DatabaseURL
	}

	if err := store.Migrate(action, url); err != nil {
		log.Fatalf("migration %s failed: %v", action, err)
	}

	log.Printf("migration %s completed", action)
}
