package main

import "github.com/storyglot/authz/cmd/storyglot-authz/cmd"

func main() {
	cmd.Execute()
}
