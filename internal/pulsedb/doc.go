// Package pulsedb is the public surface of a raster file.
//
// A Repository names a file; it holds no open handle. Every method opens the
// file, migrates it to the current layout, runs in exactly one transaction
// and closes the file again, on success and on every error path. A failed
// call leaves nothing behind: validation runs before any write, and storage
// errors roll the whole call back.
//
// Usage:
//
//	repo := pulsedb.New("scan.grdb")
//	if _, err := repo.Create(ctx, session); err != nil {
//	    return err
//	}
//	if err := repo.Append(ctx, measurements...); err != nil {
//	    return err
//	}
//	page, err := repo.LoadMeasurements(ctx, pulsedb.Page{Limit: 100})
package pulsedb
