//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Dev groups targets that run the relay locally.
type Dev mg.Namespace

// Serve builds and starts the HTTP relay with debug logging.
func (Dev) Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve", "--debug")
}

// Catalog builds and prints the request catalogue.
func (Dev) Catalog() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "catalog")
}

// History builds and prints exchange counts from the local history database.
func (Dev) History() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "history", "--db", "data/history.db", "--stats")
}
