package main

import "github.com/nextlevelbuilder/parrot/cmd"

func main() {
	cmd.Execute()
}
