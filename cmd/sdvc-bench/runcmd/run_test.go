/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package runcmd

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
)

func TestRunCmd_WritesMetricFiles(t *testing.T) {
	outDir := t.TempDir()

	runCmd := Cmd()
	runCmd.SetArgs([]string{
		"--claims", "10",
		"--iterations", "1",
		"--schemes", "sd",
		"--out-dir", outDir,
		"--log-level", "ERROR",
	})

	require.NoError(t, runCmd.Execute())

	issueRows := readCSV(t, filepath.Join(outDir, "issue_vc_sd.csv"))
	require.Equal(t, []string{"run", "claims", "ms"}, issueRows[0])
	require.Len(t, issueRows, 11)
	require.Equal(t, "1", issueRows[1][1])
	require.Equal(t, "10", issueRows[10][1])
	require.Equal(t, issueRows[1][0], issueRows[10][0])

	vcSizeRows := readCSV(t, filepath.Join(outDir, "vc_size_sd.csv"))
	require.Equal(t, []string{"run", "claims", "bytes"}, vcSizeRows[0])
	require.Len(t, vcSizeRows, 11)

	discloseRows := readCSV(t, filepath.Join(outDir, "issue_vp_sd.csv"))
	require.Equal(t, []string{"run", "claims", "disclosed", "ms"}, discloseRows[0])
	require.Len(t, discloseRows, 11)
	require.Equal(t, "10", discloseRows[1][1])
	require.Equal(t, "1", discloseRows[1][2])
	require.Equal(t, "10", discloseRows[10][2])

	verifyRows := readCSV(t, filepath.Join(outDir, "verify_vp_sd.csv"))
	require.Equal(t, []string{"run", "claims", "disclosed", "ms"}, verifyRows[0])
	require.Len(t, verifyRows, 11)

	vpSizeRows := readCSV(t, filepath.Join(outDir, "vp_size_sd.csv"))
	require.Equal(t, []string{"run", "claims", "disclosed", "bytes"}, vpSizeRows[0])
	require.Len(t, vpSizeRows, 11)
}

func TestRunCmd_EnvValues(t *testing.T) {
	outDir := t.TempDir()

	t.Setenv(claimsEnvKey, "3")
	t.Setenv(iterationsEnvKey, "2")
	t.Setenv(schemesEnvKey, "merkle")
	t.Setenv(outDirEnvKey, outDir)

	runCmd := Cmd()
	runCmd.SetArgs([]string{})

	require.NoError(t, runCmd.Execute())

	issueRows := readCSV(t, filepath.Join(outDir, "issue_vc_merkle.csv"))
	require.Len(t, issueRows, 4)

	// no presentation measurements below ten claims
	vpSizeRows := readCSV(t, filepath.Join(outDir, "vp_size_merkle.csv"))
	require.Len(t, vpSizeRows, 1)
}

func TestRunCmd_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "claims out of range",
			args:   []string{"--claims", "0"},
			errMsg: "claims must be between 1 and 65535",
		},
		{
			name:   "claims not a number",
			args:   []string{"--claims", "ten"},
			errMsg: "failed to parse claims value ten",
		},
		{
			name:   "iterations out of range",
			args:   []string{"--iterations", "0"},
			errMsg: "iterations must be at least 1",
		},
		{
			name:   "unknown scheme",
			args:   []string{"--schemes", "paillier"},
			errMsg: `unsupported scheme "paillier"`,
		},
		{
			name:   "invalid log level",
			args:   []string{"--log-level", "LOUD"},
			errMsg: "failed to parse log level 'LOUD'",
		},
	}

	for _, test := range tests {
		tc := test
		t.Run(tc.name, func(t *testing.T) {
			runCmd := Cmd()
			runCmd.SetArgs(tc.args)

			err := runCmd.Execute()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestRunCmd_BadOutDir(t *testing.T) {
	occupied := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(occupied, []byte("x"), 0o600))

	runCmd := Cmd()
	runCmd.SetArgs([]string{"--claims", "1", "--schemes", "sd", "--out-dir", occupied})

	err := runCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "create output directory")
}

func TestParseSchemes(t *testing.T) {
	schemes, err := parseSchemes(nil)
	require.NoError(t, err)
	require.Equal(t, []disclosure.Scheme{disclosure.CSD, disclosure.SD, disclosure.Merkle, disclosure.BBS}, schemes)

	schemes, err = parseSchemes([]string{"bbs", " sd", "bbs"})
	require.NoError(t, err)
	require.Equal(t, []disclosure.Scheme{disclosure.BBS, disclosure.SD}, schemes)

	_, err = parseSchemes([]string{"paillier"})
	require.ErrorIs(t, err, disclosure.ErrMalformedInput)
}

func TestMockClaimSet(t *testing.T) {
	cs, err := mockClaimSet(3)
	require.NoError(t, err)
	require.Equal(t, 3, cs.Len())

	claims := cs.Claims()
	require.Equal(t, []byte("Claim Key 1"), claims[0].Key)
	require.Equal(t, []byte("Claim Value 3"), claims[2].Value)
}

func TestFormatMillis(t *testing.T) {
	require.Equal(t, "1.500", formatMillis(1500*time.Microsecond))
	require.Equal(t, "0.000", formatMillis(0))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, file.Close())
	}()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	return rows
}
