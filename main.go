package main

import "device-reservation/cmd"

func main() {
	cmd.Execute()
}
