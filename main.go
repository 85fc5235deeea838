package main

import "github.com/adammhaile/elpis/cmd"

func main() {
	cmd.Execute()
}
