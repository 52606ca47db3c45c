package main

import "github.com/inkwell-blog/apiserver/cmd"

func main() {
	cmd.Execute()
}
