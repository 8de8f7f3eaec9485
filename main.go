package main

import "github.com/jjudge-oj/judge-worker/cmd"

func main() {
	cmd.Execute()
}
