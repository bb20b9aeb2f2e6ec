package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/spacemeshos/auditor/benchmark"
	"github.com/spacemeshos/auditor/client"
	"github.com/spacemeshos/auditor/config"
	"github.com/spacemeshos/auditor/signing"
)

const requestTimeout = 30 * time.Second

func proof(endpoint, hostID string) error {
	if endpoint == "" || hostID == "" {
		return errors.New("usage: proof <endpoint> <host_id>")
	}
	fmt.Printf("Querying %s for the proof of computation of %s\n", endpoint, hostID)

	cl, err := client.New(endpoint)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := cl.ProofOfComputation(ctx, hostID)
	if err != nil {
		return fmt.Errorf("getting proof: %w", err)
	}
	fmt.Printf("server %s signed the response\n", resp.HostID)
	for _, entry := range resp.Data {
		fmt.Printf("  %s  %.6f\n", entry.ID, entry.PartialProofOfComputation)
	}
	fmt.Printf("proof of computation: %.6f over %d observations\n", resp.ProofOfComputation, len(resp.Data))
	return nil
}

func genkey(dir string, bits int) error {
	if dir == "" {
		return errors.New("usage: genkey <dir>")
	}
	identity, err := signing.LoadOrCreate(
		filepath.Join(dir, config.PrivateKeyFilename),
		filepath.Join(dir, config.PublicKeyFilename),
		bits,
	)
	if err != nil {
		return err
	}
	fmt.Print(identity.PublicKeyText())
	return nil
}

func submit(endpoint, keyDir, hostID string, loops uint) error {
	if endpoint == "" {
		return errors.New("usage: submit [--key-dir dir] [--host-id id] <endpoint>")
	}
	identity, err := signing.LoadOrCreate(
		filepath.Join(keyDir, config.PrivateKeyFilename),
		filepath.Join(keyDir, config.PublicKeyFilename),
		signing.DefaultKeyBits,
	)
	if err != nil {
		return err
	}
	if hostID == "" {
		hostID = uuid.NewString()
	}

	cl, err := client.New(endpoint, client.WithIdentity(identity, hostID))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	fmt.Printf("Benchmarking with %d loops\n", loops)
	bench := benchmark.Run(uint32(loops))
	resp, err := client.NewReporter(cl, time.Second).ReportOnce(ctx, bench)
	if err != nil {
		return fmt.Errorf("submitting statistics: %w", err)
	}
	fmt.Printf("observation %s accepted for host %s\n", resp.Data.ID, hostID)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "auditorcli",
		Usage: "query and feed an auditor server",
		Commands: []cli.Command{
			{
				Name:      "genkey",
				Usage:     "create a signing identity in a directory, or print the existing one",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					cli.IntFlag{Name: "bits", Value: signing.DefaultKeyBits, Usage: "RSA modulus size"},
				},
				Action: func(cCtx *cli.Context) error {
					return genkey(cCtx.Args().First(), cCtx.Int("bits"))
				},
			},
			{
				Name:      "submit",
				Usage:     "sample this host once and submit the statistics",
				ArgsUsage: "<endpoint>",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "key-dir", Value: ".", Usage: "directory holding the signing identity"},
					cli.StringFlag{Name: "host-id", Usage: "host identifier to report as (random when empty)"},
					cli.UintFlag{Name: "loops", Value: uint(benchmark.DefaultLoops), Usage: "benchmark loops"},
				},
				Action: func(cCtx *cli.Context) error {
					return submit(cCtx.Args().First(), cCtx.String("key-dir"), cCtx.String("host-id"), cCtx.Uint("loops"))
				},
			},
			{
				Name:      "proof",
				Usage:     "fetch and verify the proof of computation of a host",
				ArgsUsage: "<endpoint> <host_id>",
				Action: func(cCtx *cli.Context) error {
					return proof(cCtx.Args().First(), cCtx.Args().Get(1))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
