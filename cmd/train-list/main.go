package main

import "github.com/aliawhy/train-list/cmd/train-list/cmd"

func main() {
	cmd.Execute()
}
