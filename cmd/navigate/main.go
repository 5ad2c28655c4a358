// Package main is the single-binary entrypoint for Navigate.
package main

import "github.com/navigate-learning/navigate/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
