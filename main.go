package main

import "github.com/gaurav-prasanna/docmirror/cmd"

func main() {
	cmd.Execute()
}
