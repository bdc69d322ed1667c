package main

import "campus-errands.com/campus-errands/cmd"

func main() {
	cmd.Execute()
}
