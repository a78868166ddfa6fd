package main

import "github.com/mediaforge-app/mediaforge/internal/cli"

func main() {
	cli.Execute()
}
