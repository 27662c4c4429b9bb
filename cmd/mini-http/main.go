package main

import (
	"github.com/niels/mini-http/internal/cmd"
)

func main() {
	cmd.Execute()
}
