package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// dbExt is the extension the file picker filters on. Any path typed by
// hand is passed to the engine as is.
const dbExt = ".db"

type dbInfo struct {
	path    string
	name    string
	modTime time.Time
	size    int64
}

func discoverDatabases(dir string) ([]dbInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}

	var dbs []dbInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), dbExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dbs = append(dbs, dbInfo{
			path:    filepath.Join(dir, e.Name()),
			name:    e.Name(),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
	}

	sort.SliceStable(dbs, func(i, j int) bool {
		return dbs[i].modTime.After(dbs[j].modTime)
	})
	return dbs, nil
}
