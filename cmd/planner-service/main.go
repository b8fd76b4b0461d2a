package main

import (
	"fmt"
	"os"

	"github.com/wayfarerlabs/tripweaver/plannerservice"
)

func main() {
	if err := plannerservice.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "planner-service: %v\n", err)
		os.Exit(1)
	}
}
