// Package main is the entry point for the Picketly API.
//
// The binary has two commands:
//
//	picketly [serve]   run the HTTP API (the default)
//	picketly migrate   apply database migrations and exit
//
// Both read configuration the same way: optional .env files (--env-file,
// default ".env"), then the process environment, which wins.
//
// All real work lives in internal/; main only loads config, builds the
// logger and hands off.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
