// Package brotli provides encode and decode services backed by
// github.com/andybalholm/brotli, installable into a partstore.Store.
package brotli
