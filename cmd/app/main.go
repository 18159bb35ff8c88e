package main

import (
	"github.com/reelpick/core/internal/app"
	"github.com/reelpick/core/internal/config"
)

func main() {
	app.Go(config.Load())
}
