package main

import "github.com/openbiotel/biotel-monitor-go/cmd"

func main() {
	cmd.Execute()
}
