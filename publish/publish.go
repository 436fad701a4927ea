// Package publish copies finished results tables to Google Cloud Storage and
// optionally loads them into BigQuery.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// Uploader holds the destination of published tables. Storage is required;
// BigQuery may be nil, in which case tables are only uploaded.
type Uploader struct {
	Context  context.Context
	Storage  *storage.Client
	BigQuery *bigquery.Client

	// Destination is gs://bucket/prefix
	Destination string
	Dataset     string
}

// New connects the clients an Uploader needs. An empty project or dataset
// skips BigQuery.
func New(ctx context.Context, destination, project, dataset string) (*Uploader, error) {
	if !exprqc.IsGoogleStorage(destination) {
		return nil, fmt.Errorf("publish destination %s is not a gs:// path", destination)
	}

	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	u := &Uploader{
		Context:     ctx,
		Storage:     sc,
		Destination: strings.TrimSuffix(destination, "/"),
		Dataset:     dataset,
	}

	if project != "" && dataset != "" {
		if u.BigQuery, err = bigquery.NewClient(ctx, project); err != nil {
			sc.Close()
			return nil, fmt.Errorf("connecting to BigQuery: %v", err)
		}
	}

	return u, nil
}

func (u *Uploader) Close() error {
	if u.BigQuery != nil {
		u.BigQuery.Close()
	}
	return u.Storage.Close()
}

// ObjectURI is where a local table is uploaded.
func ObjectURI(destination, localPath string) string {
	return strings.TrimSuffix(destination, "/") + "/" + filepath.Base(localPath)
}

// TableName turns a results file name into a legal BigQuery table id:
// E-TEST-1_A-AFFY-44-analytics.tsv becomes E_TEST_1_A_AFFY_44_analytics.
func TableName(localPath string) string {
	base := filepath.Base(localPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, base)
}

// Upload copies the local file to the destination and returns its gs:// URI.
func (u *Uploader) Upload(localPath string) (string, error) {
	uri := ObjectURI(u.Destination, localPath)
	bucket, object, err := exprqc.SplitGoogleStoragePath(uri)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", pfx.Err(err)
	}
	defer f.Close()

	w := u.Storage.Bucket(bucket).Object(object).NewWriter(u.Context)
	w.ContentType = "text/tab-separated-values"
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", pfx.Err(err)
	}
	if err := w.Close(); err != nil {
		return "", pfx.Err(err)
	}

	return uri, nil
}

// Load replaces the BigQuery table with the contents of a tab-delimited
// object, letting BigQuery infer the schema from the header row.
func (u *Uploader) Load(uri, table string) error {
	if u.BigQuery == nil {
		return nil
	}

	ref := bigquery.NewGCSReference(uri)
	ref.FieldDelimiter = "\t"
	ref.SkipLeadingRows = 1
	ref.AutoDetect = true

	loader := u.BigQuery.Dataset(u.Dataset).Table(table).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(u.Context)
	if err != nil {
		return pfx.Err(err)
	}
	status, err := job.Wait(u.Context)
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(status.Err())
}

// Publish uploads the table and, if BigQuery is configured, loads it.
func (u *Uploader) Publish(localPath string) (string, error) {
	uri, err := u.Upload(localPath)
	if err != nil {
		return "", err
	}

	return uri, u.Load(uri, TableName(localPath))
}

// Published lists the gs:// URIs of the results tables already present at
// the destination.
func (u *Uploader) Published() ([]string, error) {
	bucket, prefix, err := exprqc.SplitGoogleStoragePath(u.Destination + "/")
	if err != nil {
		// A bare bucket has no prefix
		bucket, prefix = strings.TrimPrefix(u.Destination, "gs://"), ""
	}

	out := make([]string, 0)
	it := u.Storage.Bucket(bucket).Objects(u.Context, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if strings.HasSuffix(attrs.Name, "-analytics.tsv") {
			out = append(out, "gs://"+path.Join(bucket, attrs.Name))
		}
	}

	return out, nil
}
