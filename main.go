package main

import "github.com/notargets/goamg/cmd"

func main() {
	cmd.Execute()
}
