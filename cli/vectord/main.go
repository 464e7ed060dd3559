package main

import (
	"os"

	vectordcmder "github.com/novelassist/vectord/cmd/vectord"
)

func main() {
	cmd := vectordcmder.NewVectordCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
