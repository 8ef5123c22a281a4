// Package storage writes downloaded post files to disk.
//
// Each post gets its own directory named after the post id. Image files keep
// the name of their CDN link. Writes go to a temporary file in the same
// directory and are renamed into place, so an interrupted download never
// leaves a truncated file that a later run would mistake for a finished one.
//
//	m, err := storage.NewManager(cfg.Download.OutputDirectory, cfg.Download.OverwriteExisting)
//	if !m.ShouldSkip(post.ID, img) {
//		_, err = m.Save(post.ID, img, func(w io.Writer) (int64, error) {
//			return client.DownloadFile(ctx, img.Link, w)
//		})
//	}
package storage
