package main

import (
	"os"
)

// 退出码
const (
	exitClean    = 0
	exitFatal    = 1
	exitDetected = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	code := exitClean
	cmd := newRootCmd(os.Stdout, &code)
	cmd.SetArgs(args)
	if err := executeCmd(cmd); err != nil {
		return exitFatal
	}
	return code
}
