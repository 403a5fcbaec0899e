package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sugarcraft/academy-backend/api/middleware"
	"github.com/sugarcraft/academy-backend/api/responses"
	"github.com/sugarcraft/academy-backend/pkg/config"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

type purchaseVerifier interface {
	VerifyEbookPurchase(ctx context.Context, userID, email, slug string) (bool, error)
}

type ebookSource interface {
	EbookAsset(ctx context.Context, slug string) (name, url string, err error)
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
}

// DownloadEbook streams the gated PDF to a member who has paid for it. The
// file comes from the CMS; a configured local copy serves as fallback when
// the CMS is unreachable.
func DownloadEbook(verifier purchaseVerifier, source ebookSource, cfg config.DownloadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if verifier == nil || source == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
			return
		}

		slug := cfg.EbookSlug
		purchased, err := verifier.VerifyEbookPurchase(ctx, userID, "", slug)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !purchased {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "no purchase found for this product"))
			return
		}

		body, filename, err := openEbook(ctx, source, slug, cfg.LocalFallbackPath, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if _, err := io.Copy(w, body); err != nil && logg != nil {
			logg.Error(ctx, "stream ebook to client", err)
		}
	}
}

func openEbook(ctx context.Context, source ebookSource, slug, fallbackPath string, logg *logger.Logger) (io.ReadCloser, string, error) {
	name, url, err := source.EbookAsset(ctx, slug)
	if err == nil {
		body, streamErr := source.Stream(ctx, url)
		if streamErr == nil {
			return body, name + ".pdf", nil
		}
		err = streamErr
	}

	if fallbackPath == "" {
		return nil, "", err
	}
	if logg != nil {
		logg.Error(ctx, "cms ebook fetch failed, serving local fallback", err)
	}
	file, openErr := os.Open(fallbackPath)
	if openErr != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, openErr, "open fallback file")
	}
	return file, filepath.Base(fallbackPath), nil
}
