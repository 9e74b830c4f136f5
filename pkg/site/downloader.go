package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	errs "furarchiver/pkg/errors"
)

// ProgressFunc receives periodic transfer progress. total is -1 when the
// remote does not announce a content length.
type ProgressFunc func(transferred, total int64)

// Download streams a remote file to dest. The data lands in a temporary file
// first and is renamed into place only on success, so a failed transfer never
// leaves a partial file behind.
func (c *Client) Download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.NewHTTP(errs.TypeFromStatusCode(resp.StatusCode), resp.StatusCode,
			fmt.Sprintf("unexpected status downloading %s", url))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errs.Newf(errs.ErrorTypeFilesystem, "failed to create directory: %v", err)
	}

	tempFile := dest + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return errs.Newf(errs.ErrorTypeFilesystem, "failed to create temporary file: %v", err)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		body = &progressReader{
			inner:    resp.Body,
			total:    resp.ContentLength,
			progress: progress,
		}
	}

	_, copyErr := io.Copy(out, body)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempFile)
		if ctx.Err() != nil {
			return fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return errs.Newf(errs.ErrorTypeNetwork, "transfer failed: %v", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return errs.Newf(errs.ErrorTypeFilesystem, "failed to close file: %v", closeErr)
	}

	if err := os.Rename(tempFile, dest); err != nil {
		os.Remove(tempFile)
		return errs.Newf(errs.ErrorTypeFilesystem, "failed to rename temporary file: %v", err)
	}

	return nil
}

// progressReader reports transferred bytes as they stream through
type progressReader struct {
	inner       io.Reader
	total       int64
	transferred int64
	progress    ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		r.progress(r.transferred, r.total)
	}
	return n, err
}
