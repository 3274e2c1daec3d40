package main

import "github.com/apexforge/apexcad/cmd"

func main() {
	cmd.Execute()
}
