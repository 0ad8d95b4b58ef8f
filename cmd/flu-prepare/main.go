// cmd/flu-prepare/main.go
package main

import (
	"fluprep/internal/app"
	"fluprep/internal/appshell"
)

func main() { appshell.Main(app.RunContext) }
