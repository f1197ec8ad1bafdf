package main

import (
	"github.com/veda-labs/examtutor/internal/adapters/driving/cli"
)

// version is overridden at build time:
//
//	go build -ldflags "-X main.version=v1.2.3" ./cmd/examtutor
var version = "dev"

func main() {
	cli.Execute(version)
}
