package main

import "github.com/mweinbach/cowork/internal/cli"

func main() {
	cli.Execute()
}
