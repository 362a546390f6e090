package tiger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/fetcher"
)

// BlockGroupURL returns the per-county block-group archive URL, e.g.
// {base}/TIGER2010/BG/2010/tl_2010_17019_bg10.zip.
func BlockGroupURL(base string, year int, stateCounty string) string {
	return fmt.Sprintf("%s/TIGER%d/BG/%d/tl_%d_%s_bg%02d.zip",
		strings.TrimRight(base, "/"), year, year, year, stateCounty, year%100)
}

// Download fetches a TIGER/Line ZIP into destDir and extracts it next to the archive.
// An archive already present with content is reused. Returns the path to the .shp file.
func Download(ctx context.Context, f fetcher.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	zipName := url[strings.LastIndex(url, "/")+1:]
	if zipName == "" || !strings.HasSuffix(strings.ToLower(zipName), ".zip") {
		return "", eris.Errorf("tiger: %q does not name a zip archive", url)
	}
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER shapefile")
		// Download to a temp name so a failed transfer is never mistaken for a cached archive.
		part := zipPath + ".part"
		if _, err := f.DownloadToFile(ctx, url, part); err != nil {
			_ = os.Remove(part)
			return "", eris.Wrap(err, "tiger: download shapefile")
		}
		if err := os.Rename(part, zipPath); err != nil {
			return "", eris.Wrap(err, "tiger: finalize download")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, filepath.Ext(zipName)))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create extract dir")
	}

	paths, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "tiger: extract ZIP")
	}

	shpPath, err := fetcher.FindFileByExt(paths, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: find .shp file")
	}
	return shpPath, nil
}
