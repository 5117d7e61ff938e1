package main

import "github.com/kozaktomas/facemood/cmd"

func main() {
	cmd.Execute()
}
