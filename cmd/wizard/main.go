// Command wizard drives an onboarding session headlessly: it loads the
// organization's draft from the profile API, applies an answers file, uploads
// the listed documents concurrently, walks the steps and completes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/persistence"
	"onboard/internal/platform/logger"
	"onboard/internal/profile/models"
	"onboard/internal/upload"
	"onboard/internal/wizard"
	id "onboard/pkg/domain"
)

type options struct {
	answersPath   string
	server        string
	token         string
	signingKey    string
	orgID         string
	maxConcurrent int
	saveOnly      bool
	logLevel      string
}

func main() {
	var o options
	flag.StringVar(&o.answersPath, "answers", "answers.yaml", "YAML answers file")
	flag.StringVar(&o.server, "server", envOr("ONBOARD_SERVER", "http://localhost:8080"), "profile API base URL")
	flag.StringVar(&o.token, "token", os.Getenv("ONBOARD_TOKEN"), "bearer token for the organization")
	flag.StringVar(&o.signingKey, "signing-key", os.Getenv("JWT_SIGNING_KEY"), "sign a local token instead of -token (development)")
	flag.StringVar(&o.orgID, "org", os.Getenv("ONBOARD_ORG_ID"), "organization id used with -signing-key")
	flag.IntVar(&o.maxConcurrent, "max-uploads", upload.DefaultMaxConcurrent, "concurrent document uploads")
	flag.BoolVar(&o.saveOnly, "save-only", false, "save progress without completing")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level")
	flag.Parse()

	log := logger.New(o.logLevel, "text")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.Error("wizard failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, o options, log *slog.Logger) error {
	a, err := loadAnswers(o.answersPath)
	if err != nil {
		return err
	}
	token, err := bearerToken(o, a.Category)
	if err != nil {
		return err
	}
	client, err := persistence.New(o.server,
		persistence.WithTokenSource(persistence.StaticToken(token)),
		persistence.WithTracer(otel.Tracer("onboard/wizard")),
		persistence.WithLogger(log),
	)
	if err != nil {
		return err
	}

	session, err := wizard.Open(ctx, client, a.Category,
		wizard.WithLogger(log),
		wizard.WithUploadOptions(upload.WithMaxConcurrent(o.maxConcurrent), upload.WithLogger(log)),
		wizard.WithCompletionHook(func(_ context.Context, d *models.ProfileDraft) {
			log.Info("profile completed", "name", d.Identity.Name, "documents", d.UploadedCount())
		}),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = session.Close(closeCtx)
	}()

	if err := a.apply(session.Fields()); err != nil {
		return err
	}
	if err := uploadDocuments(ctx, session, a, log); err != nil {
		return err
	}
	if err := session.SaveProgress(ctx); err != nil {
		return err
	}
	log.Info("progress saved",
		"uploaded", session.Uploads().UploadedCount(),
		"total", session.Uploads().TotalCount(),
	)
	if o.saveOnly {
		return nil
	}
	return walk(ctx, session, log)
}

func bearerToken(o options, category models.Category) (string, error) {
	if o.token != "" {
		return o.token, nil
	}
	if o.signingKey == "" {
		return "", errors.New("either -token or -signing-key is required")
	}
	orgID, err := id.ParseOrgID(o.orgID)
	if err != nil {
		return "", fmt.Errorf("-org: %w", err)
	}
	svc := jwttoken.NewJWTService(o.signingKey, envOr("JWT_ISSUER", "onboard"), envOr("JWT_AUDIENCE", "onboard-api"))
	return svc.GenerateAccessToken(orgID, category, "wizard-cli", time.Hour)
}

// uploadDocuments starts every upload, then waits for all of them. Slots that
// are already completed on the server are replaced.
func uploadDocuments(ctx context.Context, session *wizard.Session, a *answers, log *slog.Logger) error {
	types := make([]models.DocumentType, 0, len(a.Documents))
	for t := range a.Documents {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	uploads := session.Uploads()
	tasks := make(map[models.DocumentType]*upload.Task, len(types))
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, t := range types {
		if slot, ok := session.Fields().Slot(t); ok && slot.Status == models.UploadCompleted {
			if err := uploads.Replace(t); err != nil {
				return err
			}
		}
		f, file, err := a.openDocument(a.Documents[t])
		if err != nil {
			return fmt.Errorf("document %s: %w", t, err)
		}
		files = append(files, f)
		task, err := uploads.StartUpload(ctx, t, file)
		if err != nil {
			return fmt.Errorf("document %s: %w", t, err)
		}
		tasks[t] = task
	}

	var errs []error
	for _, t := range types {
		res, err := tasks[t].Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", t, err))
			continue
		}
		log.Info("document uploaded", "type", t, "file", res.FileName)
	}
	return errors.Join(errs...)
}

// walk advances through every step; advancing past the last one completes.
func walk(ctx context.Context, session *wizard.Session, log *slog.Logger) error {
	for !session.Completed() {
		step := session.CurrentStep()
		if err := session.Advance(ctx); err != nil {
			var invalid *models.ValidationError
			if errors.As(err, &invalid) {
				return fmt.Errorf("step %d is incomplete: %w", step, err)
			}
			return err
		}
		log.Debug("step done", "step", step, "progress", session.Progress())
	}
	return nil
}
