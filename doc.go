/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdvc provides issuance, selective disclosure and verification of
// signed claim sets under four interchangeable disclosure schemes: a
// constant-size bilinear accumulator (CSD), a salted-digest array (SD),
// Merkle inclusion paths and BBS+ signatures with zero-knowledge subset
// proofs.
//
// The disclosure protocol and its artifacts live in
// "github.com/hyperledger/aries-sdvc-go/pkg/disclosure", with one package per
// scheme below it. Claim sets and their canonical encoding are in
// "github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset".
package sdvc
