package main

import "github.com/fakeyudi/codebattle/cmd"

func main() {
	cmd.Execute()
}
