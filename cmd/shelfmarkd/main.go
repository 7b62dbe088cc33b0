package main

import (
	"log"

	"github.com/shelfmark/shelfmark/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ shelfmark failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ shelfmark failed to start: %v", err)
	}
}
