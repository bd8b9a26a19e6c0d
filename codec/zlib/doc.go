// Package zlib provides deflate and inflate services backed by
// github.com/klauspost/compress/zlib, installable into a partstore.Store.
//
//	var s partstore.Store
//	deflate, err := zlib.InstallDeflateService(&s)
//	...
//	svc := partstore.MustGet[zlib.DeflateService](&s)
package zlib
