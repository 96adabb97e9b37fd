package main

import "llamabridge/cmd"

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cmd.Version = Version
	cmd.License = License
	cmd.Execute()
}
