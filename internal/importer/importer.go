package importer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/model"
)

// Source starts streaming rows. The first row must be the header.
type Source func(ctx context.Context) (<-chan Record, <-chan error)

// Submitter accepts one application.
type Submitter interface {
	Submit(ctx context.Context, userID int64, raw model.RawFeatures) (int64, error)
}

// RowError is a row that failed validation. Row is the 1-based line of the
// source file.
type RowError struct {
	Row int
	Err error
}

// Result summarises an import.
type Result struct {
	Submitted []int64
	Failed    []RowError
}

// FileSource picks the CSV or XLSX reader from the file extension.
func FileSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return func(ctx context.Context) (<-chan Record, <-chan error) {
			return streamCSVFile(ctx, path)
		}, nil
	case ".xlsx":
		return func(ctx context.Context) (<-chan Record, <-chan error) {
			return StreamXLSX(ctx, path, XLSXOptions{})
		}, nil
	}
	return nil, eris.Errorf("importer: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
}

// Import submits every data row from src. Rows that fail validation are
// collected in the result; any other failure stops the import.
func Import(ctx context.Context, src Source, sub Submitter, defaultUserID int64) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, errs := src(ctx)
	res := &Result{}

	header, ok := <-rows
	if !ok {
		if err := <-errs; err != nil {
			return nil, eris.Wrap(err, "importer: read header")
		}
		return nil, eris.New("importer: source is empty")
	}
	cols, err := mapHeader(header.Fields)
	if err != nil {
		return nil, err
	}

	for rec := range rows {
		line := rec.Line
		if blank(rec.Fields) {
			continue
		}

		userID, raw, err := cols.applicant(rec.Fields, defaultUserID)
		if err == nil {
			var id int64
			id, err = sub.Submit(ctx, userID, raw)
			if err == nil {
				res.Submitted = append(res.Submitted, id)
				continue
			}
		}
		if !apperr.Is(err, apperr.KindValidation) {
			return res, eris.Wrapf(err, "importer: row %d", line)
		}
		zap.L().Warn("importer: row rejected", zap.Int("row", line), zap.Error(err))
		res.Failed = append(res.Failed, RowError{Row: line, Err: err})
	}

	if err := <-errs; err != nil {
		return res, eris.Wrap(err, "importer: read rows")
	}
	return res, nil
}

type columns struct {
	features map[int]string
	userID   int
}

// mapHeader resolves column names to feature keys. Aliases are accepted,
// unknown columns are ignored and every feature must be present.
func mapHeader(header []string) (*columns, error) {
	cols := &columns{features: map[int]string{}, userID: -1}
	seen := map[string]bool{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "user_id" {
			cols.userID = i
			continue
		}
		if canonical, ok := model.FeatureAliases[name]; ok {
			name = canonical
		}
		for _, f := range model.FeatureNames {
			if f == name && !seen[name] {
				cols.features[i] = name
				seen[name] = true
			}
		}
	}

	var missing []string
	for _, f := range model.FeatureNames {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("importer: header missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c *columns) applicant(row []string, defaultUserID int64) (int64, model.RawFeatures, error) {
	var raw model.RawFeatures
	for i, name := range c.features {
		if i >= len(row) || row[i] == "" {
			continue
		}
		v, _ := json.Marshal(row[i])
		raw.Set(name, v)
	}

	userID := defaultUserID
	if c.userID >= 0 && c.userID < len(row) && strings.TrimSpace(row[c.userID]) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(row[c.userID]), 10, 64)
		if err != nil {
			return 0, raw, apperr.Validation("import row", "invalid input data",
				map[string]string{"user_id": "must be an integer"})
		}
		userID = id
	}
	return userID, raw, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
