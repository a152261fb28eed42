package main

import "github.com/studyflow/processor/internal/cli"

func main() {
	cli.Execute()
}
