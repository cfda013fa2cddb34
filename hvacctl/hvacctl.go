package main

import "github.com/mholen/hvacctl/cmd/hvacctl/cmd"

func main() {
	cmd.Execute()
}
