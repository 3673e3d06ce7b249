package main

import "github.com/scottd-labs/mtfs/cmd"

func main() {
	cmd.Execute()
}
