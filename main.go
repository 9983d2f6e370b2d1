package main

import (
	"github.com/seccerts/seccerts/cmd"
)

func main() {
	cmd.Execute()
}
