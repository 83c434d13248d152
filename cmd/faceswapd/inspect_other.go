//go:build !darwin

package main

import "io"

// go-metal needs Metal.
func probeMetal(io.Writer, string) {}
