package main

import "github.com/plasma-umass/slipcover/cmd/covrun/cmd"

func main() {
	cmd.Execute()
}
