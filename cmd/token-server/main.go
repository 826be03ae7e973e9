package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-lifecycle/pkg/app"
)

func main() {
	if err := app.Run(newTokenApp(), app.WithRequestLogging()); err != nil {
		logrus.WithError(err).Error("error running token server")
		os.Exit(1)
	}
}
