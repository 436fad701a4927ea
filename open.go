package exprqc

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// IsGoogleStorage reports whether path points into a Google Storage bucket.
func IsGoogleStorage(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// SplitGoogleStoragePath splits gs://bucket/some/object into its bucket and
// object name.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// Open opens a local file, or a Google Storage object if client is non-nil and
// the path begins with gs://. The caller must close the result.
func Open(path string, client *storage.Client) (io.ReadCloser, error) {
	if client != nil && IsGoogleStorage(path) {
		bucketName, pathName, err := SplitGoogleStoragePath(path)
		if err != nil {
			return nil, err
		}

		rdr, err := client.Bucket(bucketName).Object(pathName).NewReader(context.Background())
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return rdr, nil
	}

	return os.Open(ExpandHome(path))
}

// ReadAll opens path (local or gs://), transparently decompresses it, and
// returns the full contents. The tables this program consumes are small
// enough to be held in memory, which also lets the delimiter be sniffed
// before parsing.
func ReadAll(path string, client *storage.Client) ([]byte, error) {
	f, err := Open(path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rdr, err := MaybeDecompressReader(f)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}
	defer rdr.Close()

	return ioutil.ReadAll(rdr)
}
