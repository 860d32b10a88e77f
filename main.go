package main

import "github.com/killallgit/foliochat/cmd"

func main() {
	cmd.Execute()
}
