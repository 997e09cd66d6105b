package main

import "github.com/khanhnv2901/webinspect/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
