package main

import "github.com/cmmoran/jvmobf/cmd"

func main() {
	cmd.Execute()
}
