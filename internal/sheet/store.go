package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/automerge/automerge-go"
	"github.com/pkg/errors"
)

const (
	snapshotDir    = "snapshot"
	incrementalDir = "incremental"
	snapshotFile   = "sqlview-export"
)

// column is one entry of a sheet's column row.
type column struct {
	key  string
	name string
	typ  string
}

// files returns the regular files of dir in name order. A missing dir is
// empty.
func files(dir string) ([][]byte, []string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var blobs [][]byte
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, nil, err
		}
		blobs = append(blobs, b)
		names = append(names, e.Name())
	}
	return blobs, names, nil
}

// loadDoc rebuilds the document stored in dir from its snapshot, then
// applies incremental changes on top.
func loadDoc(dir string) (*automerge.Doc, error) {
	snaps, _, err := files(filepath.Join(dir, snapshotDir))
	if err != nil {
		return nil, errors.Wrap(err, "read snapshots")
	}
	incs, names, err := files(filepath.Join(dir, incrementalDir))
	if err != nil {
		return nil, errors.Wrap(err, "read incrementals")
	}

	var doc *automerge.Doc
	if len(snaps) > 0 {
		if doc, err = automerge.Load(snaps[0]); err != nil {
			return nil, errors.Wrap(err, "load snapshot")
		}
	}
	for i, inc := range incs {
		if doc == nil {
			if doc, err = automerge.Load(inc); err != nil {
				return nil, errors.Wrapf(err, "load %s", names[i])
			}
			continue
		}
		if err := doc.LoadIncremental(inc); err != nil {
			return nil, errors.Wrapf(err, "apply %s", names[i])
		}
	}
	if doc == nil {
		return nil, errors.Errorf("no sheet document in %s", dir)
	}
	return doc, nil
}

// saveDoc writes doc as the only snapshot in dir.
func saveDoc(doc *automerge.Doc, dir string) error {
	snap := filepath.Join(dir, snapshotDir)
	if err := os.RemoveAll(snap); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(dir, incrementalDir)); err != nil {
		return err
	}
	if err := os.MkdirAll(snap, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(snap, snapshotFile), doc.Save(), 0o644)
}

// tableList finds the list holding the column row and the data rows. It is
// either the document's "data" list or, for wrapped documents, the "data"
// list of its first element when that element is typed.
func tableList(doc *automerge.Doc) *automerge.List {
	v, err := doc.Path("data").Get()
	if err != nil || v.Kind() != automerge.KindList {
		return nil
	}
	data := v.List()
	head, err := data.Get(0)
	if err != nil || head.Kind() != automerge.KindMap {
		return data
	}
	keys, _ := head.Map().Keys()
	if !contains(keys, "type") {
		return data
	}
	inner, err := head.Map().Get("data")
	if err != nil || inner.Kind() != automerge.KindList {
		return data
	}
	return inner.List()
}

// readTable decodes the columns and rows of doc. Rows are keyed by column key.
func readTable(doc *automerge.Doc) ([]column, []map[string]any, error) {
	data := tableList(doc)
	if data == nil || data.Len() == 0 {
		return nil, nil, errors.New("document has no table data")
	}

	head, err := data.Get(0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "column row")
	}
	if head.Kind() != automerge.KindMap {
		return nil, nil, errors.Errorf("column row is %s, want map", head.Kind())
	}
	defs := head.Map()
	keys, err := defs.Keys()
	if err != nil {
		return nil, nil, errors.Wrap(err, "column keys")
	}

	cols := make([]column, 0, len(keys))
	for _, k := range keys {
		v, err := defs.Get(k)
		if err != nil || v.Kind() != automerge.KindMap {
			continue
		}
		c := column{key: k, name: str(v.Map(), "name"), typ: str(v.Map(), "type")}
		if c.name == "" {
			c.name = "col" + k
		}
		cols = append(cols, c)
	}
	sort.SliceStable(cols, func(i, j int) bool {
		a, _ := strconv.Atoi(cols[i].key)
		b, _ := strconv.Atoi(cols[j].key)
		return a < b
	})

	rows := make([]map[string]any, 0, data.Len()-1)
	for i := 1; i < data.Len(); i++ {
		v, err := data.Get(i)
		if err != nil || v.Kind() != automerge.KindMap {
			continue
		}
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			if cell, err := v.Map().Get(c.key); err == nil {
				row[c.key] = toSQL(cell)
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

// toSQL converts a document value into something the driver can bind.
func toSQL(v *automerge.Value) any {
	switch v.Kind() {
	case automerge.KindVoid, automerge.KindNull:
		return nil
	case automerge.KindStr:
		return v.Str()
	case automerge.KindText:
		s, _ := v.Text().Get()
		return s
	case automerge.KindInt64:
		return v.Int64()
	case automerge.KindUint64:
		return int64(v.Uint64())
	case automerge.KindFloat64:
		return v.Float64()
	case automerge.KindBytes:
		return v.Bytes()
	case automerge.KindBool:
		if v.Bool() {
			return int64(1)
		}
		return int64(0)
	}
	return fmt.Sprint(v.Interface())
}

func str(m *automerge.Map, key string) string {
	v, err := m.Get(key)
	if err != nil {
		return ""
	}
	if s, ok := toSQL(v).(string); ok {
		return s
	}
	return ""
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
