package demo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

// ErrTeamIncomplete is returned when every offer has been made and the team
// still cannot cover the project budget.
var ErrTeamIncomplete = errors.New("team capacity does not cover the project budget")

// Run executes the scripted formation: health check, session, project,
// recommendations, offers, bid and cleanup.
func Run(ctx context.Context, cfg *Config) (*Summary, error) {
	applyDefaults(cfg)
	log := logger.Get().Named("demo")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, stats)

	log.Info(ctx, "starting g-cart demo",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("projectID", cfg.ProjectID),
		logger.Int("partners", len(cfg.Partners)),
		logger.Duration("timeout", cfg.Timeout))

	// Step 1: Check service health
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy")

	// Step 2: Open a session
	var sess sessionView
	if err := client.Post(ctx, "/sessions", nil, &sess); err != nil {
		return nil, fmt.Errorf("session creation failed: %w", err)
	}
	base := "/sessions/" + url.PathEscape(sess.ID)
	log.Info(ctx, "session created", logger.String("sessionID", sess.ID), logger.String("owner", sess.Owner.Name))
	if !cfg.KeepSession {
		defer func() {
			if err := client.Delete(context.WithoutCancel(ctx), base); err != nil {
				log.Warn(ctx, "failed to end session", logger.Error(err))
			}
		}()
	}

	// Step 3: Select the project
	if err := client.Put(ctx, base+"/project", selectProjectRequest{ProjectID: cfg.ProjectID}, &sess); err != nil {
		return nil, fmt.Errorf("project selection failed: %w", err)
	}
	if sess.Project == nil {
		return nil, fmt.Errorf("project selection failed: no project in session %s", sess.ID)
	}
	log.Info(ctx, "project selected",
		logger.String("project", sess.Project.Name),
		logger.String("budget", sess.Project.BudgetDisplay),
		logger.Bool("soloBiddable", sess.Project.SoloBiddable))

	// Step 4: Build the team
	if !sess.Biddable {
		if err := buildTeam(ctx, cfg, client, base, &sess, stats, log); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		SessionID: sess.ID,
		Project:   *sess.Project,
		Members:   sess.Team.Members,
		Biddable:  sess.Biddable,
	}

	// Step 5: Confirm the bid
	if !sess.Biddable {
		finish(stats)
		summary.Stats = *stats
		displaySummary(cfg, summary)
		return summary, fmt.Errorf("%w: %s remaining", ErrTeamIncomplete, sess.Remaining)
	}
	if err := client.Post(ctx, base+"/bid", nil, &sess); err != nil {
		return nil, fmt.Errorf("bid confirmation failed: %w", err)
	}
	summary.Result = sess.Result

	finish(stats)
	summary.Stats = *stats
	displaySummary(cfg, summary)

	log.Info(ctx, "demo completed successfully",
		logger.Int("requests", stats.Requests),
		logger.Int("offersAdded", stats.OffersAdded),
		logger.Int("offersRejected", stats.OffersRejected),
		logger.Duration("duration", stats.Duration))
	return summary, nil
}

// buildTeam offers partners until the team can bid or the list runs out.
func buildTeam(ctx context.Context, cfg *Config, client *HTTPClient, base string, sess *sessionView, stats *Stats, log logger.Logger) error {
	names := cfg.Partners
	if len(names) == 0 {
		var rec recommendationView
		if err := client.Get(ctx, base+"/recommendations", &rec); err != nil {
			return fmt.Errorf("recommendation retrieval failed: %w", err)
		}
		log.Info(ctx, "recommendations received",
			logger.Int("candidates", len(rec.Candidates)),
			logger.Int("directorySize", rec.DirectorySize))
		for _, c := range rec.Candidates {
			names = append(names, c.Partner.Name)
		}
	}

	for _, name := range names {
		if sess.Biddable {
			return nil
		}
		var res offerView
		err := client.Post(ctx, base+"/offers", offerRequest{Partner: name}, &res)
		if apiErr, ok := rejected(err); ok {
			stats.OffersRejected++
			log.Warn(ctx, "offer rejected",
				logger.String("partner", name),
				logger.String("code", apiErr.Code),
				logger.String("message", apiErr.Message))
			continue
		}
		if err != nil {
			return fmt.Errorf("offer to %s failed: %w", name, err)
		}
		if res.Added {
			stats.OffersAdded++
		} else {
			stats.OffersSkipped++
		}
		*sess = res.Session
		if cfg.Verbose {
			log.Info(ctx, "offer sent",
				logger.String("partner", name),
				logger.Bool("added", res.Added),
				logger.Float64("progress", sess.Progress))
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ProjectID <= 0 {
		cfg.ProjectID = DefaultProjectID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
}

func finish(stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
}

// displaySummary prints the formation outcome for a human reader.
func displaySummary(cfg *Config, s *Summary) {
	w := cfg.Out
	fmt.Fprintf(w, "Project: %s (%s)\n", s.Project.Name, s.Project.BudgetDisplay)
	fmt.Fprintf(w, "Members: %d\n", len(s.Members))
	var total model.Amount
	for _, m := range s.Members {
		total += m.Capacity
		fmt.Fprintf(w, "  - %s [%s] %s\n", m.Name, m.TradeType, m.Capacity)
	}
	if s.Result != nil {
		fmt.Fprintf(w, "Bid confirmed: %s\n", s.Result.TotalCapacity)
		fmt.Fprintf(w, "%s\n", s.Result.AllocationNote)
	} else {
		fmt.Fprintf(w, "Bid not possible: partner capacity %s is short of %s\n", total, s.Project.Shortfall)
	}
	fmt.Fprintf(w, "Requests: %d, offers added: %d, skipped: %d, rejected: %d, took %s\n",
		s.Stats.Requests, s.Stats.OffersAdded, s.Stats.OffersSkipped, s.Stats.OffersRejected,
		s.Stats.Duration.Round(time.Millisecond))
}
