package main

import "furnace/cmd"

func main() {
	cmd.Execute()
}
