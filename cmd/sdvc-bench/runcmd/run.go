/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package runcmd implements the sdvc-bench run command. It reproduces the
// measurement sweep of the original evaluation: credentials are issued for
// every claim set size up to the configured maximum, and presentations are
// derived and verified at every tenth size for disclosed-claim counts
// stepping from a tenth of the set to the full set.
package runcmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure/bbs"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure/csd"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure/merkle"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure/sd"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

const (
	claimsFlagName  = "claims"
	claimsEnvKey    = "SDVC_BENCH_CLAIMS"
	claimsDefault   = "100"
	claimsFlagUsage = "Largest claim set size to sweep. Defaults to " + claimsDefault + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + claimsEnvKey

	iterationsFlagName  = "iterations"
	iterationsEnvKey    = "SDVC_BENCH_ITERATIONS"
	iterationsDefault   = "1"
	iterationsFlagUsage = "Timed repetitions per measurement. Defaults to " + iterationsDefault + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + iterationsEnvKey

	schemesFlagName  = "schemes"
	schemesEnvKey    = "SDVC_BENCH_SCHEMES"
	schemesFlagUsage = "Schemes to benchmark. Possible values [csd] [sd] [merkle] [bbs]." +
		" This flag can be repeated, allowing for multiple schemes. Defaults to all four if not set." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + schemesEnvKey

	outDirFlagName  = "out-dir"
	outDirEnvKey    = "SDVC_BENCH_OUT_DIR"
	outDirFlagUsage = "Directory the CSV files are written to. Defaults to the working directory if not set." +
		" Alternatively, this can be set with the following environment variable: " + outDirEnvKey

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "SDVC_BENCH_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	// presentations are measured at every tenth claim set size, for disclosed
	// counts stepping by a tenth of the set.
	disclosureSteps = 10
)

var logger = log.New("aries-sdvc/bench")

type benchParameters struct {
	claims     int
	iterations int
	schemes    []disclosure.Scheme
	outDir     string
}

// Cmd returns the Cobra run command.
func Cmd() *cobra.Command {
	runCmd := createRunCmd()

	createFlags(runCmd)

	return runCmd
}

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the disclosure benchmarks",
		Long:  "Sweep claim counts and disclosed-claim counts across the selected schemes, writing per-metric CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			parameters, err := getBenchParameters(cmd)
			if err != nil {
				return err
			}

			return runBench(parameters)
		},
	}
}

func createFlags(runCmd *cobra.Command) {
	runCmd.Flags().StringP(claimsFlagName, "", "", claimsFlagUsage)

	runCmd.Flags().StringP(iterationsFlagName, "", "", iterationsFlagUsage)

	runCmd.Flags().StringSliceP(schemesFlagName, "", []string{}, schemesFlagUsage)

	runCmd.Flags().StringP(outDirFlagName, "", "", outDirFlagUsage)

	runCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
}

func getBenchParameters(cmd *cobra.Command) (*benchParameters, error) {
	claims, err := getIntVar(cmd, claimsFlagName, claimsEnvKey, claimsDefault)
	if err != nil {
		return nil, err
	}

	if claims < 1 || claims > claimset.MaxClaims {
		return nil, fmt.Errorf("%s must be between 1 and %d", claimsFlagName, claimset.MaxClaims)
	}

	iterations, err := getIntVar(cmd, iterationsFlagName, iterationsEnvKey, iterationsDefault)
	if err != nil {
		return nil, err
	}

	if iterations < 1 {
		return nil, fmt.Errorf("%s must be at least 1", iterationsFlagName)
	}

	schemeNames, err := getUserSetVars(cmd, schemesFlagName, schemesEnvKey)
	if err != nil {
		return nil, err
	}

	schemes, err := parseSchemes(schemeNames)
	if err != nil {
		return nil, err
	}

	outDir, err := getUserSetVar(cmd, outDirFlagName, outDirEnvKey, true)
	if err != nil {
		return nil, err
	}

	if outDir == "" {
		outDir = "."
	}

	return &benchParameters{
		claims:     claims,
		iterations: iterations,
		schemes:    schemes,
		outDir:     outDir,
	}, nil
}

func getIntVar(cmd *cobra.Command, flagName, envKey, defaultValue string) (int, error) {
	value, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		value = defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s value %s: %w", flagName, value, err)
	}

	return n, nil
}

func parseSchemes(names []string) ([]disclosure.Scheme, error) {
	if len(names) == 0 {
		return []disclosure.Scheme{disclosure.CSD, disclosure.SD, disclosure.Merkle, disclosure.BBS}, nil
	}

	var schemes []disclosure.Scheme

	for _, name := range names {
		scheme, err := disclosure.ParseScheme(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}

		if slices.Contains(schemes, scheme) {
			continue
		}

		schemes = append(schemes, scheme)
	}

	return schemes, nil
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	return values, nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func runBench(parameters *benchParameters) error {
	if err := os.MkdirAll(parameters.outDir, 0o700); err != nil {
		return errors.Wrapf(err, "create output directory %s", parameters.outDir)
	}

	run := uuid.New().String()

	logger.Infof("bench run %s: up to %d claims, %d iterations per measurement",
		run, parameters.claims, parameters.iterations)

	for _, scheme := range parameters.schemes {
		start := time.Now()

		if err := benchScheme(scheme, parameters, run); err != nil {
			return err
		}

		logger.Infof("benchmarked %q in %s", scheme, time.Since(start))
	}

	return nil
}

// benchScheme runs the full sweep for one scheme and writes its five metric
// files. The credential issued at each size is reused for every disclosure
// step at that size, as the original evaluation does.
func benchScheme(scheme disclosure.Scheme, parameters *benchParameters, run string) error {
	backend, keyPair, err := newBackend(scheme, parameters.claims)
	if err != nil {
		return errors.Wrapf(err, "set up %q backend", scheme)
	}

	pub := keyPair.Public()

	var issueRows, vcSizeRows, discloseRows, verifyRows, vpSizeRows [][]string

	for n := 1; n <= parameters.claims; n++ {
		cs, err := mockClaimSet(n)
		if err != nil {
			return errors.Wrapf(err, "build %d-claim mock set", n)
		}

		var cred *disclosure.Credential

		elapsed, err := measure(parameters.iterations, func() error {
			var issueErr error
			cred, issueErr = backend.Issue(cs, keyPair)

			return issueErr
		})
		if err != nil {
			return errors.Wrapf(err, "issue %d-claim %q credential", n, scheme)
		}

		credBytes, err := cred.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "marshal %d-claim %q credential", n, scheme)
		}

		issueRows = append(issueRows, []string{run, strconv.Itoa(n), formatMillis(elapsed)})
		vcSizeRows = append(vcSizeRows, []string{run, strconv.Itoa(n), strconv.Itoa(len(credBytes))})

		if n%disclosureSteps != 0 {
			continue
		}

		for disclosed := n / disclosureSteps; disclosed <= n; disclosed += n / disclosureSteps {
			indices := make([]int, disclosed)
			for i := range indices {
				indices[i] = i
			}

			var pres *disclosure.Presentation

			elapsed, err := measure(parameters.iterations, func() error {
				var discloseErr error
				pres, discloseErr = backend.Disclose(cred, cs, indices)

				return discloseErr
			})
			if err != nil {
				return errors.Wrapf(err, "disclose %d of %d %q claims", disclosed, n, scheme)
			}

			discloseRows = append(discloseRows,
				[]string{run, strconv.Itoa(n), strconv.Itoa(disclosed), formatMillis(elapsed)})

			elapsed, err = measure(parameters.iterations, func() error {
				_, verifyErr := backend.Verify(pres, pub)

				return verifyErr
			})
			if err != nil {
				return errors.Wrapf(err, "verify %d of %d %q claims", disclosed, n, scheme)
			}

			verifyRows = append(verifyRows,
				[]string{run, strconv.Itoa(n), strconv.Itoa(disclosed), formatMillis(elapsed)})

			presBytes, err := pres.MarshalBinary()
			if err != nil {
				return errors.Wrapf(err, "marshal %d-claim %q presentation", disclosed, scheme)
			}

			vpSizeRows = append(vpSizeRows,
				[]string{run, strconv.Itoa(n), strconv.Itoa(disclosed), strconv.Itoa(len(presBytes))})
		}
	}

	metrics := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{fmt.Sprintf("issue_vc_%s.csv", scheme), []string{"run", "claims", "ms"}, issueRows},
		{fmt.Sprintf("vc_size_%s.csv", scheme), []string{"run", "claims", "bytes"}, vcSizeRows},
		{fmt.Sprintf("issue_vp_%s.csv", scheme), []string{"run", "claims", "disclosed", "ms"}, discloseRows},
		{fmt.Sprintf("verify_vp_%s.csv", scheme), []string{"run", "claims", "disclosed", "ms"}, verifyRows},
		{fmt.Sprintf("vp_size_%s.csv", scheme), []string{"run", "claims", "disclosed", "bytes"}, vpSizeRows},
	}

	for _, metric := range metrics {
		if err := writeCSV(filepath.Join(parameters.outDir, metric.name), metric.header, metric.rows); err != nil {
			return err
		}
	}

	return nil
}

func newBackend(scheme disclosure.Scheme, maxClaims int) (disclosure.Backend, disclosure.KeyPair, error) {
	switch scheme {
	case disclosure.CSD:
		keyPair, err := csd.GenerateKeyPair(maxClaims)
		if err != nil {
			return nil, nil, err
		}

		return csd.New(), keyPair, nil
	case disclosure.SD:
		keyPair, err := sd.GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}

		return sd.New(), keyPair, nil
	case disclosure.Merkle:
		keyPair, err := merkle.GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}

		return merkle.New(), keyPair, nil
	case disclosure.BBS:
		keyPair, err := bbs.GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}

		return bbs.New(), keyPair, nil
	default:
		return nil, nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
}

func mockClaimSet(size int) (*claimset.ClaimSet, error) {
	pairs := make([]claimset.Pair, size)

	for i := range pairs {
		pairs[i] = claimset.Pair{
			Key:   []byte(fmt.Sprintf("Claim Key %d", i+1)),
			Value: []byte(fmt.Sprintf("Claim Value %d", i+1)),
		}
	}

	return claimset.New(pairs)
}

func measure(iterations int, op func() error) (time.Duration, error) {
	start := time.Now()

	for i := 0; i < iterations; i++ {
		if err := op(); err != nil {
			return 0, err
		}
	}

	return time.Since(start) / time.Duration(iterations), nil
}

func formatMillis(elapsed time.Duration) string {
	return strconv.FormatFloat(float64(elapsed.Nanoseconds())/1e6, 'f', 3, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", filepath.Base(path))
	}

	writer := csv.NewWriter(file)

	err = writer.Write(header)
	if err == nil {
		err = writer.WriteAll(rows)
	}

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}

	return nil
}
