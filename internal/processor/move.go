package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/checksum"
)

// move copies src into folder as name, verifies the copy, deletes src and
// polls until the deletion is visible. Network shares can lag on both the
// copy and the delete, hence the waits.
func (p *Processor) move(ctx context.Context, src, folder, name string) error {
	dst := filepath.Join(folder, name)
	p.logger.Info("processor: moving file", slog.String("from", src), slog.String("to", dst))

	if err := p.store.Copy(src, dst); err != nil {
		return fmt.Errorf("%w: couldn't move %s to %s: %w", apperr.ErrMoveVerification, src, dst, err)
	}
	if err := sleep(ctx, p.opts.VerifyDelay); err != nil {
		return err
	}
	if err := verifyCopy(src, dst); err != nil {
		return err
	}

	if err := p.store.Remove(src); err != nil {
		return fmt.Errorf("%w: couldn't delete %s: %w", apperr.ErrMoveVerification, src, err)
	}
	for attempt := 0; attempt < p.opts.DeleteRetries; attempt++ {
		if exists, err := p.store.Exists(src); err == nil && !exists {
			return nil
		}
		if err := sleep(ctx, p.opts.RetryInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: couldn't delete %s", apperr.ErrMoveVerification, src)
}

func verifyCopy(src, dst string) error {
	want, err := checksum.File(src)
	if err != nil {
		return fmt.Errorf("%w: couldn't read %s: %w", apperr.ErrMoveVerification, src, err)
	}
	got, err := checksum.File(dst)
	if err != nil {
		return fmt.Errorf("%w: couldn't move %s to %s: %w", apperr.ErrMoveVerification, src, dst, err)
	}
	if got != want {
		return fmt.Errorf("%w: copy of %s at %s differs from the source", apperr.ErrMoveVerification, src, dst)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
