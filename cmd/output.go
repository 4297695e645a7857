package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/report"
)

// writeReport renders r to path, or to stdout when path is "-" or empty.
func writeReport(stdout io.Writer, r report.Report, format, path string) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}

	if path == "" || path == "-" {
		return report.Render(stdout, r, f)
	}

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := report.Render(out, r, f); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}

	zap.L().Info("report written",
		zap.String("path", path),
		zap.String("format", string(f)),
		zap.Int("events", len(r.Events)),
		zap.Bool("no_data", r.NoData),
	)
	return nil
}
