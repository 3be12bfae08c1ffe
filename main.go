package main

import (
	"os"

	"github.com/wims-lti/wims-lti/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
