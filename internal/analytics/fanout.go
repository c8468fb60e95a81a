package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

// task is one independent sub-query of a snapshot. It writes its result into
// fields owned by no other task.
type task struct {
	fields   []string
	optional bool
	run      func(ctx context.Context) error
}

func mandatory(field string, run func(ctx context.Context) error) task {
	return task{fields: []string{field}, run: run}
}

func optional(run func(ctx context.Context) error, fields ...string) task {
	return task{fields: fields, optional: true, run: run}
}

// runTasks fans tasks out and joins them. An optional task that fails because
// the source is unavailable or its own deadline passed is reported through
// degraded and failures; any other failure aborts the whole run.
func (s *service) runTasks(ctx context.Context, tasks []task) (degraded []string, failures error, err error) {
	errs := make([]error, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, s.cfg.SubQueryTimeout)
			defer cancel()

			runErr := t.run(tctx)
			if runErr == nil {
				return nil
			}
			if t.optional && ctx.Err() == nil && degradable(runErr) {
				errs[i] = fmt.Errorf("%s: %w", strings.Join(t.fields, ","), runErr)
				return nil
			}
			return runErr
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	degraded = []string{}
	for i, e := range errs {
		if e != nil {
			degraded = append(degraded, tasks[i].fields...)
		}
	}
	return degraded, multierr.Combine(errs...), nil
}

func degradable(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeDependency) || errors.Is(err, context.DeadlineExceeded)
}
