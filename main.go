package main

import (
	"github.com/arvinMleadai/booking-mcp-sub000/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
