package main

import "github.com/KaramelBytes/plotdesk-cli/cmd"

func main() {
	cmd.Execute()
}
