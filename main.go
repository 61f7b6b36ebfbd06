package main

import "github.com/crystaldolphin/chatkeeper/cmd"

func main() {
	cmd.Execute()
}
