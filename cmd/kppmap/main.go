// Package main is the entrypoint of the kppmap workload mapping tool.
package main

import "github.com/notargets/kppmap/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
