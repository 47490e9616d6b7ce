// Package archive classifies downloaded assets and unpacks the supported
// archive formats (zip, tar, tar.gz and plain gzip) into a directory.
package archive
