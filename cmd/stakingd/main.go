package main

import (
	"log"

	stakingd "aurora/services/stakingd"
)

func main() {
	if err := stakingd.Main(); err != nil {
		log.Fatalf("stakingd: %v", err)
	}
}
