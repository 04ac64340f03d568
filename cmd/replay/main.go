package main

import "github.com/canopy-network/stacksx/cmd/replay/cmd"

func main() {
	cmd.Execute()
}
