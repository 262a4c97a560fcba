package report

import (
	"context"
	"errors"
)

// Presenter receives a finished report. It matches scheduler.Presenter.
type Presenter interface {
	Present(ctx context.Context, r *Report) error
}

// Presenters fans a report out to several presenters. Every presenter runs
// even if an earlier one fails; the errors are joined.
type Presenters []Presenter

// Present implements scheduler.Presenter.
func (ps Presenters) Present(ctx context.Context, r *Report) error {
	var errs []error
	for _, p := range ps {
		if err := p.Present(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
