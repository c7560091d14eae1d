package main

import "github.com/parksense/parksense-api/cmd/parkctl/commands"

func main() {
	commands.Execute()
}
