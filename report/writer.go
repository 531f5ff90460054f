package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	xerrors "github.com/jacoelho/i5validator/errors"
)

// Write encodes the aggregate as pretty-printed JSON.
func Write(w io.Writer, a *Aggregate) error {
	if a == nil {
		a = NewAggregate()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile writes the aggregate to path, logging the number of documents first.
func WriteFile(path string, a *Aggregate, logger *slog.Logger) (err error) {
	if a == nil {
		a = NewAggregate()
	}
	if logger != nil {
		logger.Info(fmt.Sprintf("number of checked files: %d", a.Len()), slog.String("report", path))
	}
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Wrapf(xerrors.ErrIO, err, "create report %s", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = xerrors.Wrapf(xerrors.ErrIO, closeErr, "close report %s", path)
		}
	}()
	if err := Write(f, a); err != nil {
		return xerrors.Wrapf(xerrors.ErrIO, err, "write report %s", path)
	}
	return nil
}
