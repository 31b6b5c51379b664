package main

import "github.com/goldengate/goldengate/cmd/goldengate/cmd"

func main() {
	cmd.Execute()
}
