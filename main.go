package main

import "user-admin/cmd"

func main() {
	cmd.Execute()
}
