// Package iox provides I/O helpers shared by the materializer, the archive
// and the notifiers.
package iox

import "io"

// DiscardClose closes c and discards the error.
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DrainClose reads rc to EOF and closes it, so an HTTP connection can be
// reused. Errors are discarded.
//
//	defer iox.DrainClose(resp.Body)
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}

// ReadAtMost reads r to EOF, stopping after limit bytes. over reports that
// r held more than limit bytes; data then holds the first limit+1 bytes.
// limit <= 0 reads everything.
func ReadAtMost(r io.Reader, limit int64) (data []byte, over bool, err error) {
	if limit <= 0 {
		data, err = io.ReadAll(r)
		return data, false, err
	}
	data, err = io.ReadAll(io.LimitReader(r, limit+1))
	return data, int64(len(data)) > limit, err
}
