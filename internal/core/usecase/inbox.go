package usecase

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

var (
	inboxYear    = regexp.MustCompile(`^(19|20)\d{2}$`)
	inboxQuarter = regexp.MustCompile(`^(?i)q[1-4]$`)
)

// InboxDefaults fill metadata that a file name does not carry.
type InboxDefaults struct {
	Company string
	Year    int
	Quarter string
}

// InboxUseCase uploads files dropped into a watched directory. Metadata is
// read from names shaped like "<company>_<year>[_<quarter>].pdf".
type InboxUseCase struct {
	ingest   *IngestUseCase
	defaults InboxDefaults
	logger   *slog.Logger
	seen     map[string]struct{}
}

func NewInboxUseCase(ingest *IngestUseCase, defaults InboxDefaults, logger *slog.Logger) *InboxUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxUseCase{
		ingest:   ingest,
		defaults: defaults,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Run uploads each path once until paths is closed or ctx is done. Upload
// failures are logged and do not stop the loop.
func (uc *InboxUseCase) Run(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			uc.handle(ctx, path)
		}
	}
}

func (uc *InboxUseCase) handle(ctx context.Context, path string) {
	if _, dup := uc.seen[path]; dup {
		return
	}
	req := uc.Request(path)
	doc, err := uc.ingest.Upload(ctx, req)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			uc.seen[path] = struct{}{}
		}
		uc.logger.Warn("inbox_upload_failed", "path", path, "error", err)
		return
	}
	uc.seen[path] = struct{}{}
	uc.logger.Info("inbox_uploaded", "path", path, "doc_id", doc.ID, "company", doc.Company, "year", doc.Year)
}

// Request derives upload metadata from the file name, falling back to the
// configured defaults.
func (uc *InboxUseCase) Request(path string) domain.UploadRequest {
	company, year, quarter := ParseInboxName(filepath.Base(path))
	return domain.UploadRequest{
		Path:     path,
		Filename: filepath.Base(path),
		Company:  firstNonEmpty(company, uc.defaults.Company),
		Year:     firstPositive(year, uc.defaults.Year),
		Quarter:  firstNonEmpty(quarter, uc.defaults.Quarter),
	}
}

func ParseInboxName(name string) (company string, year int, quarter string) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "_")

	if n := len(parts); n > 1 && inboxQuarter.MatchString(parts[n-1]) {
		quarter = strings.ToUpper(parts[n-1])
		parts = parts[:n-1]
	}
	if n := len(parts); n > 1 && inboxYear.MatchString(parts[n-1]) {
		year, _ = strconv.Atoi(parts[n-1])
		parts = parts[:n-1]
	} else {
		quarter = ""
	}
	if year == 0 {
		return "", 0, ""
	}
	return strings.Join(parts, " "), year, quarter
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
