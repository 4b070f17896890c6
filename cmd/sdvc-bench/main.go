/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main (sdvc-bench) sweeps the selective disclosure schemes across
// claim counts and disclosed-claim counts, writing one CSV file per metric
// per scheme.
package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-sdvc-go/cmd/sdvc-bench/runcmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use: "sdvc-bench",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	logger := log.New("aries-sdvc/bench")

	rootCmd.AddCommand(runcmd.Cmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run sdvc-bench: %s", err)
	}
}
