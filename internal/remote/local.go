package remote

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// LocalTemplates reads template sheets from workbooks on disk. Each sheet
// lives in <dir>/<sheet>.xlsx; the first worksheet of that file is used.
type LocalTemplates struct {
	dir string
}

func NewLocalTemplates(dir string) *LocalTemplates {
	return &LocalTemplates{dir: dir}
}

func (l *LocalTemplates) FetchSheet(_ context.Context, sheet string) ([][]string, error) {
	path := filepath.Join(l.dir, sheet+".xlsx")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "template %s", sheet)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open template %s", path)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrapf(err, "read template %s", path)
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrSheetEmpty, sheet)
	}
	return rows, nil
}
