// 命令行工具：登录调查数据服务，经数据存储加载项目 / 地理点 / 审核统计并输出 JSON
//
// 用法：
//
//	geopoints                       列出项目
//	geopoints -project 1 -dataset wells [-format geojson] [-counts]
//
// 凭据来源依次为 CENTRAL_TOKEN，或 CENTRAL_EMAIL + CENTRAL_PASSWORD 登录换取。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"survey-map/internal/central"
	"survey-map/internal/config"
	"survey-map/internal/geopoint"
	"survey-map/internal/logger"
	"survey-map/internal/session"
	"survey-map/internal/store"
)

func main() {
	config.LoadDotenv()
	logger.Setup()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("geopoints", flag.ContinueOnError)
	project := fs.Int("project", -1, "project id")
	dataset := fs.String("dataset", "", "dataset (form) id")
	format := fs.String("format", "json", "output format: json | geojson")
	counts := fs.Bool("counts", false, "print review-state counts instead of points")
	all := fs.Bool("all", false, "print full submissions with entities")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := central.New(cfg.CentralURL, &http.Client{Timeout: cfg.CentralTimeout})
	sess := session.New(os.Getenv("CENTRAL_TOKEN"))
	if sess.Token() == "" {
		email, pass := os.Getenv("CENTRAL_EMAIL"), os.Getenv("CENTRAL_PASSWORD")
		if email == "" || pass == "" {
			return fmt.Errorf("set CENTRAL_TOKEN or CENTRAL_EMAIL and CENTRAL_PASSWORD")
		}
		s, err := client.CreateSession(ctx, email, pass)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		sess.Set(s.Token)
	}

	st := store.New(client, sess,
		store.WithProjectsTop(cfg.ProjectsTop),
		store.WithCountsTop(cfg.CountsTop),
		store.WithGeoPointsTop(cfg.GeoPointsTop),
	)
	sess.OnLogout(st.Invalidate)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if *project < 0 || *dataset == "" {
		if err := st.FetchProjects(ctx); err != nil {
			return err
		}
		return enc.Encode(st.Snapshot().Projects)
	}

	switch {
	case *counts:
		if err := st.FetchSubmissionCounts(ctx, *project, *dataset); err != nil {
			return err
		}
		return enc.Encode(st.Snapshot().SubmissionCounts)
	case *all:
		if err := st.FetchAllSubmissions(ctx, *project, *dataset); err != nil {
			return err
		}
		snap := st.Snapshot()
		return enc.Encode(map[string]any{
			"submissions":        snap.Submissions,
			"entities":           snap.Entities,
			"geoPointsAvailable": snap.GeoPointsAvailable,
			"totalSubmissions":   len(snap.Submissions),
		})
	}

	if err := st.FetchGeoPoints(ctx, *project, *dataset); err != nil {
		return err
	}
	snap := st.Snapshot()
	if !snap.GeoPointsAvailable {
		logger.L().Warn("dataset_without_geopoint", "project", *project, "dataset", *dataset)
	}
	switch *format {
	case "geojson":
		return enc.Encode(geopoint.ToFeatureCollection(snap.GeoPoints))
	case "json":
		return enc.Encode(snap.GeoPoints)
	}
	return fmt.Errorf("unknown format %q", *format)
}
