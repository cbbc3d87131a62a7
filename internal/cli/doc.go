// Package cli implements the gamectl command tree on top of package app.
package cli
