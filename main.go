package main

import "github.com/CraigKelly/moonflow/cmd"

func main() {
	cmd.Execute()
}
