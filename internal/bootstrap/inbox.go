package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/kirillkom/hyena-client/internal/core/usecase"
	"github.com/kirillkom/hyena-client/internal/infrastructure/filewatcher"
)

// RunInbox watches dir and uploads every PDF that settles in it until ctx
// is done.
func (a *App) RunInbox(ctx context.Context, dir string) error {
	if dir == "" {
		dir = a.Config.InboxDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}

	watcher := filewatcher.New([]string{".pdf"}, a.Config.InboxSettle, a.Logger)
	paths, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}

	inbox := usecase.NewInboxUseCase(a.IngestUC, usecase.InboxDefaults{
		Company: a.Config.InboxDefaultCompany,
		Year:    a.Config.InboxDefaultYear,
	}, a.Logger)

	a.Logger.Info("inbox_watching", "dir", dir, "settle", a.Config.InboxSettle.String())
	inbox.Run(ctx, paths)
	return nil
}
