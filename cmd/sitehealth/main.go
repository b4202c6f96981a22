package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"sitehealth/cmd/sitehealth/app"
	"sitehealth/internal/clock"
)

func main() {
	httpClient := &http.Client{}

	err := app.Run(os.Args, os.Stdout, os.Stderr, httpClient, clock.New())
	if err != nil {
		logrus.WithError(err).Error("sitehealth failed")
		os.Exit(1)
	}
}
