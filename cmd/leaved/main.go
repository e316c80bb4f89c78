package main

import "github.com/hrforge/leave-engine/cli"

func main() {
	cli.Execute()
}
