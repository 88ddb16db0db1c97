package main

import "github.com/shouni/go-ebook-store/cmd"

func main() {
	cmd.Execute()
}
