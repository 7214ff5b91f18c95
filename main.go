package main

import "github.com/krishkalaria12/snap-detect/cmd"

func main() {
	cmd.Execute()
}
