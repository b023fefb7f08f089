package main

import (
	"os"

	"github.com/opencourt/courtwatch/watchservice"
)

func main() {
	if err := watchservice.Run(); err != nil {
		os.Exit(1)
	}
}
