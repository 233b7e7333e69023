package main

import "github.com/chazu/joinery/cmd"

func main() {
	cmd.Execute()
}
