package export

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/simcapture/internal/session"
)

// Result is the outcome of one format. Err is set instead of Artifact when
// that exporter failed; other formats are unaffected.
type Result struct {
	Format   Format
	Artifact *Artifact
	Err      error
}

// ExportAll runs the exporters for formats concurrently over one sealed
// session. Results keep the order of formats.
func ExportAll(ctx context.Context, s *session.Session, formats []Format, opts Options) []Result {
	results := make([]Result, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, f := range formats {
		results[i].Format = f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			exp, err := New(f, opts)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Artifact, results[i].Err = exp.Export(s)
			if results[i].Err != nil {
				opts.logger().Warn("export failed", "format", f, "err", results[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
