package main

import "github.com/VoxDroid/devtask/cmd"

func main() {
	cmd.Execute()
}
