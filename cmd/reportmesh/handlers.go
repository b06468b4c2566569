package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/httpapi"
	"github.com/lunara/reportmesh/report"
)

func runServe(ctx context.Context, configPath, addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(a.engine, a.store.Reports(), a.store.Datasets(), func(o *httpapi.Options) {
		o.DefaultUserID = cfg.HTTP.DefaultUserID
		o.Logger = a.logger
		o.Metrics = a.metrics
		o.Gatherer = a.registry
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("reportmesh.http.listening", "addr", cfg.HTTP.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var serveErr error

	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	a.logger.Info("reportmesh.http.shutdown")

	return errors.Join(serveErr, srv.Shutdown(shutdownCtx), a.Close(shutdownCtx))
}

type generateOptions struct {
	reportID   int64
	userID     string
	prompt     string
	newSession bool
	jsonOutput bool
}

func runGenerate(ctx context.Context, w io.Writer, configPath string, opts generateOptions) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = a.Close(shutdownCtx)
	}()

	reports := a.store.Reports()
	if _, err := reports.Get(ctx, opts.reportID); err != nil {
		return fmt.Errorf("report %d: %w", opts.reportID, err)
	}

	stream := a.engine.Generate(ctx, report.GenerateRequest{
		UserID:          opts.userID,
		ScopeID:         strconv.FormatInt(opts.reportID, 10),
		Prompt:          opts.prompt,
		ForceNewSession: opts.newSession,
	})

	var turnErr error

	for ev := range stream {
		if ev.Type == report.OutputError && turnErr == nil {
			turnErr = errors.New(ev.Message)
		}

		if ev.Type == report.OutputDone && len(ev.Blocks) > 0 {
			if _, err := reports.AppendBlocks(ctx, opts.reportID, ev.Blocks); err != nil {
				return fmt.Errorf("failed to save blocks: %w", err)
			}
		}

		if err := printEvent(w, ev, opts.jsonOutput); err != nil {
			return err
		}
	}

	return turnErr
}

// printEvent renders one output event for a terminal.
func printEvent(w io.Writer, ev report.OutputEvent, asJSON bool) error {
	if asJSON {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%s\n", raw)

		return err
	}

	var err error

	switch ev.Type {
	case report.OutputNarration:
		_, err = fmt.Fprintf(w, "%s: %s\n", ev.Author, ev.Text)
	case report.OutputThought:
		_, err = fmt.Fprintf(w, "(thinking) %s\n", ev.Text)
	case report.OutputStatus:
		_, err = fmt.Fprintf(w, "... %s\n", ev.Text)
	case report.OutputCode:
		_, err = fmt.Fprintf(w, "```%s\n%s\n```\n", ev.Language, ev.Text)
	case report.OutputCodeResult:
		_, err = fmt.Fprintf(w, "[%s]\n%s\n", ev.Outcome, ev.Output)
	case report.OutputImage:
		_, err = fmt.Fprintf(w, "[image %s, %d bytes]\n", ev.MimeType, len(ev.Data))
	case report.OutputBlock:
		_, err = fmt.Fprintf(w, "+ block %s\n", describeBlock(ev.Block))
	case report.OutputError:
		_, err = fmt.Fprintf(w, "error: %s\n", ev.Message)
	case report.OutputDone:
		_, err = fmt.Fprintf(w, "done: %d new block(s)\n", len(ev.Blocks))
	}

	return err
}

func describeBlock(b *core.Block) string {
	if b == nil {
		return "<nil>"
	}

	return fmt.Sprintf("#%d %s %q", b.ID, b.Type, b.Title)
}

func runReportsList(ctx context.Context, w io.Writer, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reports, err := store.Reports().List(ctx)
	if err != nil {
		return err
	}

	return writeReportTable(w, reports)
}

func writeReportTable(w io.Writer, reports []report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBLOCKS\tUPDATED")

	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.ID, r.Name, len(r.Blocks), r.UpdatedAt.Format(time.RFC3339))
	}

	return tw.Flush()
}

func runReportsCreate(ctx context.Context, w io.Writer, configPath, name string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.Reports().Create(ctx, name)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "created report %d %q\n", rep.ID, rep.Name)

	return err
}
