package main

import (
	"os"

	"github.com/sirupsen/logrus"

	_ "github.com/denysvitali/carshare-anon/cmd/fetch"
	_ "github.com/denysvitali/carshare-anon/cmd/nearest"
	"github.com/denysvitali/carshare-anon/cmd/root"
	_ "github.com/denysvitali/carshare-anon/cmd/secret"
	_ "github.com/denysvitali/carshare-anon/cmd/serve"
	_ "github.com/denysvitali/carshare-anon/cmd/version"
	_ "github.com/denysvitali/carshare-anon/cmd/watch"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
