package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunBatch runs independent requests with at most Config.Workers in
// flight. A failed run does not stop the others; outcomes keep the order
// of reqs.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []Request) []Outcome {
	outs := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			outs[i], _ = p.Run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outs {
		if o.Err != nil {
			failed++
		}
	}
	p.log.WithFields(logrus.Fields{"runs": len(reqs), "failed": failed}).Info("batch finished")
	return outs
}
