package main

import "github.com/salescout/discovery/cmd"

func main() {
	cmd.Execute()
}
