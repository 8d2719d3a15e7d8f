package main

import "github.com/withobsrvr/stackctl/cmd"

func main() {
	cmd.Execute()
}
