package main

import "github.com/oshokin/lights-manager/cmd/lights-manager/cmd"

func main() {
	cmd.Execute()
}
