package main

import "github.com/ValentinKolb/kvr/cmd"

func main() {
	cmd.Execute()
}
