package main

import (
	"os"

	"mentor/cmd"
)

// @title                       Mentor API
// @version                     1.0
// @description                 Chat admission and augmentation service
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
