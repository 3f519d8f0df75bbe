package main

import (
	"go.uber.org/fx"

	"github.com/seaboundhq/seabound/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
