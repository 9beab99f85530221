package main

import "github.com/halcyonhq/aide/cmd"

func main() {
	cmd.Execute()
}
