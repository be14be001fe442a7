// Package main implements a CLI to run in-process simulations of participants
// exchanging the signatures of multi-signature batches, and to read the
// outcome of the batches.
//
//	mstnode simulate --nodes 4 --batches 10 --quorum 3
//	mstnode simulate --config sim.yml --db /tmp/mst.db --prometheus :9100
//	mstnode status --db /tmp/mst.db
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var printer io.Writer = os.Stderr

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return newApp(os.Stdout).Run(args)
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "mstnode",
		Usage:  "simulate a pool of pending multi-signature batches",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "run participants in-process until the batches are settled",
				Flags:  simulateFlags(),
				Action: simulateAction,
			},
			{
				Name:  "status",
				Usage: "print the outcome of the batches recorded in a database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Usage:    "path to the database",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "hex-encoded key of a batch, all records are printed if empty",
					},
				},
				Action: statusAction,
			},
		},
	}
}
