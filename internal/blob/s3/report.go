package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// ReportExporter writes one JSON object per continuous cycle, partitioned by
// day:
//
//	{prefix}/cycles/2026/03/01/{cycle id}.json
type ReportExporter struct {
	writer domain.BlobWriter
	prefix string
}

// NewReportExporter creates a ReportExporter. prefix defaults to "reports".
func NewReportExporter(w domain.BlobWriter, prefix string) *ReportExporter {
	if prefix == "" {
		prefix = "reports"
	}
	return &ReportExporter{writer: w, prefix: prefix}
}

// Export uploads r and returns its key. Reports larger than one part go
// through the multipart uploader.
func (e *ReportExporter) Export(ctx context.Context, r domain.CycleReport) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal report %s: %w", r.ID, err)
	}

	key := reportKey(e.prefix, r)
	if int64(len(data)) > minPartSize {
		err = e.writer.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize)
	} else {
		err = e.writer.Put(ctx, key, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: export report %s: %w", r.ID, err)
	}
	return key, nil
}

func reportKey(prefix string, r domain.CycleReport) string {
	return path.Join(prefix, "cycles", r.StartedAt.UTC().Format("2006/01/02"), r.ID+".json")
}
