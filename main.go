package main

import (
	"github.com/omniward/omniward/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
