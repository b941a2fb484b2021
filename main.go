package main

import "github.com/user/workspace-audit/cmd"

func main() {
	cmd.Execute()
}
