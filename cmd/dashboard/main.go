package main

import (
	"os"

	_ "time/tzdata" // America/Mexico_City в минимальных контейнерах

	"github.com/xela07ax/secure-access-dashboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
