package main

import "github.com/pinrec/pinrec/cmd"

func main() {
	cmd.Execute()
}
